package types

// BeginTaskRequest is the body of POST /tasks.
type BeginTaskRequest struct {
	// Number of classes the new task brings. Zero selects the configured
	// size (init_cls for the first task, increment afterwards).
	// example: 10
	NewClasses int `json:"new_classes" example:"10"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// BackbonesResponse wraps the list returned by GET /backbones.
type BackbonesResponse struct {
	// Selectable backbones.
	Backbones []Backbone `json:"backbones"`
	// Root of the weight catalog, empty when none is configured.
	// example: /home/user/weights
	WeightsDir string `json:"weights_dir,omitempty" example:"/home/user/weights"`
}

// ParamsResponse is returned by GET /params.
type ParamsResponse struct {
	// Parameters that still require gradients.
	Trainable []Param `json:"trainable"`
	// Total element count across all parameters.
	// example: 85800000
	Total int `json:"total" example:"85800000"`
	// Element count of the trainable parameters.
	// example: 300000
	TrainableTotal int `json:"trainable_total" example:"300000"`
}

// StatusResponse is returned by GET /status and by the task endpoints.
type StatusResponse struct {
	// Model name.
	// example: ease
	Model string `json:"model" example:"ease"`
	// Backbone selector name.
	// example: vit_base_patch16_224_ease
	Backbone string `json:"backbone" example:"vit_base_patch16_224_ease"`
	// Primary device.
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Index of the newest task, -1 before the first.
	// example: 1
	Task int `json:"task" example:"1"`
	// True between POST /tasks and POST /tasks/end.
	// example: false
	TaskOpen bool `json:"task_open" example:"false"`
	// Classes seen across all tasks.
	// example: 20
	KnownClasses int `json:"known_classes" example:"20"`
	// New classes per task, in order.
	TaskSizes []int `json:"task_sizes"`
	// Classes the next task must bring.
	// example: 10
	NextTaskSize int `json:"next_task_size" example:"10"`
	// Width of the concatenated feature vector the head consumes.
	// example: 1536
	FeatureDim int `json:"feature_dim" example:"1536"`
	// Output width of the cumulative head.
	// example: 20
	HeadClasses int `json:"head_classes" example:"20"`
	// Output width of the proxy head used while training.
	// example: 10
	ProxyClasses int `json:"proxy_classes" example:"10"`
	// Committed adapter sets.
	// example: 2
	AdapterSets int `json:"adapter_sets" example:"2"`
	// Last error observed by the service (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Tasks begun since start.
	// example: 2
	TasksTotal uint64 `json:"tasks_total" example:"2"`
}
