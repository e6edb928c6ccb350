package backbone

import "fmt"

// Arch describes a vision transformer's shape.
type Arch struct {
	ImgSize   int
	PatchSize int
	InChans   int
	EmbedDim  int
	Depth     int
	NumHeads  int
	MLPRatio  float64
	NormEps   float64
}

// ViTB16 is ViT-Base with 16x16 patches at 224x224 resolution.
func ViTB16() Arch {
	return Arch{
		ImgSize:   224,
		PatchSize: 16,
		InChans:   3,
		EmbedDim:  768,
		Depth:     12,
		NumHeads:  12,
		MLPRatio:  4,
		NormEps:   1e-6,
	}
}

// NumPatches is the number of patch tokens per image.
func (a Arch) NumPatches() int {
	g := a.ImgSize / a.PatchSize
	return g * g
}

// InputDim is the flattened C*H*W width expected per input row.
func (a Arch) InputDim() int { return a.InChans * a.ImgSize * a.ImgSize }

// PatchDim is the flattened C*P*P width of one patch.
func (a Arch) PatchDim() int { return a.InChans * a.PatchSize * a.PatchSize }

func (a Arch) hidden() int { return int(float64(a.EmbedDim) * a.MLPRatio) }

func (a Arch) validate() error {
	switch {
	case a.ImgSize <= 0 || a.PatchSize <= 0 || a.InChans <= 0:
		return fmt.Errorf("arch: image, patch and channel sizes must be positive")
	case a.ImgSize%a.PatchSize != 0:
		return fmt.Errorf("arch: image size %d not divisible by patch size %d", a.ImgSize, a.PatchSize)
	case a.EmbedDim <= 0 || a.NumHeads <= 0 || a.EmbedDim%a.NumHeads != 0:
		return fmt.Errorf("arch: embed dim %d not divisible into %d heads", a.EmbedDim, a.NumHeads)
	case a.Depth < 0:
		return fmt.Errorf("arch: negative depth %d", a.Depth)
	case a.hidden() <= 0:
		return fmt.Errorf("arch: mlp ratio %v gives empty hidden layer", a.MLPRatio)
	}
	return nil
}
