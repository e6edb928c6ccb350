package types

// Backbone describes a selectable backbone name.
type Backbone struct {
	// Selector name, matched case-insensitively.
	// example: vit_base_patch16_224_ease
	Name string `json:"name" example:"vit_base_patch16_224_ease"`
	// True when the backbone carries per-task adapters.
	// example: true
	Adapters bool `json:"adapters" example:"true"`
	// True when pretrained weights for this name are present in the weight catalog.
	// example: false
	WeightsAvailable bool `json:"weights_available" example:"false"`
}

// Param is a named parameter with its element count.
type Param struct {
	// Dotted parameter path.
	// example: backbone.cur_adapter.0.down_proj.weight
	Name string `json:"name" example:"backbone.cur_adapter.0.down_proj.weight"`
	// Number of elements.
	// example: 12288
	Numel int `json:"numel" example:"12288"`
}
