package backbone

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"incnet/internal/nn"
)

// Output is what a backbone produces for a batch. FMaps is only set by
// convolutional backbones.
type Output struct {
	Features *mat.Dense
	FMaps    []*mat.Dense
}

// Backbone extracts a fixed-width embedding per input row.
type Backbone interface {
	nn.Module
	OutDim() int
	Forward(x mat.Matrix) (Output, error)
	Clone() Backbone
}

// Adaptive is a backbone carrying one adapter set per task.
type Adaptive interface {
	Backbone
	// ForwardTask returns cls features. In training mode only the current
	// adapters are used; at test time the output concatenates one block per
	// committed adapter set, preceded by the plain pretrained block when
	// useInitPTM is set.
	ForwardTask(x mat.Matrix, test, useInitPTM bool) (*mat.Dense, error)
	// AddAdapterToList freezes and stores the current adapters, then starts
	// a fresh set for the next task.
	AddAdapterToList()
	NumAdapterSets() int
}

// ViT is a plain vision transformer with a class-token readout.
type ViT struct {
	nn.Mode
	arch       Arch
	patchEmbed *nn.Linear
	clsToken   *nn.Parameter // 1 x D
	posEmbed   *nn.Parameter // (1+N) x D
	blocks     []*Block
	norm       *nn.LayerNorm
}

// NewViT allocates a randomly initialised transformer for arch.
func NewViT(arch Arch, src rand.Source) (*ViT, error) {
	if arch.NormEps == 0 {
		arch.NormEps = 1e-6
	}
	if err := arch.validate(); err != nil {
		return nil, err
	}
	d := arch.EmbedDim
	v := &ViT{
		Mode:       nn.TrainMode(),
		arch:       arch,
		patchEmbed: nn.NewLinear(arch.PatchDim(), d, true, src),
		clsToken:   nn.NewParameter(1, d),
		posEmbed:   nn.NewParameter(1+arch.NumPatches(), d),
		norm:       nn.NewLayerNorm(d, arch.NormEps),
	}
	nn.FillNormal(v.clsToken.Value, 1e-6, src)
	nn.FillNormal(v.posEmbed.Value, 0.02, src)
	for i := 0; i < arch.Depth; i++ {
		v.blocks = append(v.blocks, newBlock(arch, src))
	}
	return v, nil
}

func (v *ViT) Arch() Arch  { return v.arch }
func (v *ViT) OutDim() int { return v.arch.EmbedDim }
func (v *ViT) Depth() int  { return len(v.blocks) }

// Forward returns the normalised class token of every input row.
func (v *ViT) Forward(x mat.Matrix) (Output, error) {
	feats, err := v.forwardEach(x, func(tokens *mat.Dense) *mat.Dense {
		return v.forwardTokens(tokens, nil)
	})
	if err != nil {
		return Output{}, err
	}
	return Output{Features: feats}, nil
}

// forwardEach embeds every row of x and stacks the per-row features that
// f extracts from the token matrix.
func (v *ViT) forwardEach(x mat.Matrix, f func(tokens *mat.Dense) *mat.Dense) (*mat.Dense, error) {
	n, c := x.Dims()
	if n == 0 {
		return nil, fmt.Errorf("vit: empty batch")
	}
	if c != v.arch.InputDim() {
		return nil, fmt.Errorf("vit: input width %d, want %d (%dx%dx%d)", c, v.arch.InputDim(), v.arch.InChans, v.arch.ImgSize, v.arch.ImgSize)
	}
	var out *mat.Dense
	img := make([]float64, c)
	for i := 0; i < n; i++ {
		mat.Row(img, i, x)
		feat := f(v.embed(img))
		_, w := feat.Dims()
		if out == nil {
			out = mat.NewDense(n, w, nil)
		}
		out.SetRow(i, feat.RawRowView(0))
	}
	return out, nil
}

// embed turns one C*H*W image into (1+N) x D tokens with position
// embeddings added.
func (v *ViT) embed(img []float64) *mat.Dense {
	a := v.arch
	grid := a.ImgSize / a.PatchSize
	patches := mat.NewDense(a.NumPatches(), a.PatchDim(), nil)
	for py := 0; py < grid; py++ {
		for px := 0; px < grid; px++ {
			row := patches.RawRowView(py*grid + px)
			k := 0
			for ch := 0; ch < a.InChans; ch++ {
				base := ch * a.ImgSize * a.ImgSize
				for ky := 0; ky < a.PatchSize; ky++ {
					off := base + (py*a.PatchSize+ky)*a.ImgSize + px*a.PatchSize
					k += copy(row[k:k+a.PatchSize], img[off:off+a.PatchSize])
				}
			}
		}
	}
	emb := v.patchEmbed.Forward(patches)
	tokens := mat.NewDense(1+a.NumPatches(), a.EmbedDim, nil)
	tokens.SetRow(0, v.clsToken.Value.RawRowView(0))
	tokens.Slice(1, 1+a.NumPatches(), 0, a.EmbedDim).(*mat.Dense).Copy(emb)
	tokens.Add(tokens, v.posEmbed.Value)
	return tokens
}

// forwardTokens runs the blocks, using adapters[j] in block j when present,
// and returns the normalised class token as a 1 x D matrix.
func (v *ViT) forwardTokens(tokens *mat.Dense, adapters []*Adapter) *mat.Dense {
	x := tokens
	for j, b := range v.blocks {
		var ad *Adapter
		if j < len(adapters) {
			ad = adapters[j]
		}
		x = b.Forward(x, ad)
	}
	_, d := x.Dims()
	return v.norm.Forward(x.Slice(0, 1, 0, d))
}

func (v *ViT) NamedParameters() []nn.NamedParameter {
	ps := nn.Prefixed("patch_embed.proj", v.patchEmbed.NamedParameters())
	ps = append(ps,
		nn.NamedParameter{Name: "cls_token", Param: v.clsToken},
		nn.NamedParameter{Name: "pos_embed", Param: v.posEmbed},
	)
	for i, b := range v.blocks {
		ps = append(ps, nn.Prefixed("blocks."+strconv.Itoa(i), b.NamedParameters())...)
	}
	return append(ps, nn.Prefixed("norm", v.norm.NamedParameters())...)
}

func (v *ViT) SetTraining(training bool) {
	v.Mode.SetTraining(training)
	v.patchEmbed.SetTraining(training)
	v.norm.SetTraining(training)
	for _, b := range v.blocks {
		b.setTraining(training)
	}
}

func (v *ViT) Clone() Backbone { return v.clone() }

func (v *ViT) clone() *ViT {
	c := &ViT{
		Mode:       v.Mode,
		arch:       v.arch,
		patchEmbed: v.patchEmbed.Clone(),
		clsToken:   v.clsToken.Clone(),
		posEmbed:   v.posEmbed.Clone(),
		norm:       v.norm.Clone(),
	}
	for _, b := range v.blocks {
		c.blocks = append(c.blocks, b.clone())
	}
	return c
}

// Block is a pre-norm transformer block. An optional adapter runs beside
// (parallel) or after (sequential) the MLP.
type Block struct {
	norm1 *nn.LayerNorm
	attn  *Attention
	norm2 *nn.LayerNorm
	fc1   *nn.Linear
	fc2   *nn.Linear
}

func newBlock(a Arch, src rand.Source) *Block {
	return &Block{
		norm1: nn.NewLayerNorm(a.EmbedDim, a.NormEps),
		attn:  newAttention(a.EmbedDim, a.NumHeads, src),
		norm2: nn.NewLayerNorm(a.EmbedDim, a.NormEps),
		fc1:   nn.NewLinear(a.EmbedDim, a.hidden(), true, src),
		fc2:   nn.NewLinear(a.hidden(), a.EmbedDim, true, src),
	}
}

func (b *Block) Forward(x *mat.Dense, ad *Adapter) *mat.Dense {
	h := b.attn.Forward(b.norm1.Forward(x))
	h.Add(h, x)
	x = h

	var adaptX *mat.Dense
	if ad != nil && ad.parallel() {
		adaptX = ad.Forward(x, false)
	}
	out := b.fc2.Forward(nn.GELU(b.fc1.Forward(b.norm2.Forward(x))))
	if ad != nil {
		if adaptX != nil {
			out.Add(out, adaptX)
		} else {
			out = ad.Forward(out, true)
		}
	}
	out.Add(out, x)
	return out
}

func (b *Block) NamedParameters() []nn.NamedParameter {
	ps := nn.Prefixed("norm1", b.norm1.NamedParameters())
	ps = append(ps, nn.Prefixed("attn.qkv", b.attn.qkv.NamedParameters())...)
	ps = append(ps, nn.Prefixed("attn.proj", b.attn.proj.NamedParameters())...)
	ps = append(ps, nn.Prefixed("norm2", b.norm2.NamedParameters())...)
	ps = append(ps, nn.Prefixed("mlp.fc1", b.fc1.NamedParameters())...)
	return append(ps, nn.Prefixed("mlp.fc2", b.fc2.NamedParameters())...)
}

func (b *Block) setTraining(training bool) {
	b.norm1.SetTraining(training)
	b.attn.qkv.SetTraining(training)
	b.attn.proj.SetTraining(training)
	b.norm2.SetTraining(training)
	b.fc1.SetTraining(training)
	b.fc2.SetTraining(training)
}

func (b *Block) clone() *Block {
	return &Block{
		norm1: b.norm1.Clone(),
		attn:  &Attention{numHeads: b.attn.numHeads, qkv: b.attn.qkv.Clone(), proj: b.attn.proj.Clone()},
		norm2: b.norm2.Clone(),
		fc1:   b.fc1.Clone(),
		fc2:   b.fc2.Clone(),
	}
}

// Attention is multi-head scaled dot-product self-attention.
type Attention struct {
	numHeads int
	qkv      *nn.Linear // D -> 3D, laid out [q | k | v]
	proj     *nn.Linear
}

func newAttention(dim, heads int, src rand.Source) *Attention {
	return &Attention{
		numHeads: heads,
		qkv:      nn.NewLinear(dim, 3*dim, true, src),
		proj:     nn.NewLinear(dim, dim, true, src),
	}
}

func (a *Attention) Forward(x *mat.Dense) *mat.Dense {
	t, d := x.Dims()
	dh := d / a.numHeads
	scale := 1 / math.Sqrt(float64(dh))
	qkv := a.qkv.Forward(x)
	heads := make([]mat.Matrix, a.numHeads)
	for h := range heads {
		q := qkv.Slice(0, t, h*dh, (h+1)*dh)
		k := qkv.Slice(0, t, d+h*dh, d+(h+1)*dh)
		v := qkv.Slice(0, t, 2*d+h*dh, 2*d+(h+1)*dh)
		scores := mat.NewDense(t, t, nil)
		scores.Mul(q, k.T())
		scores.Scale(scale, scores)
		nn.SoftmaxRows(scores)
		o := mat.NewDense(t, dh, nil)
		o.Mul(scores, v)
		heads[h] = o
	}
	return a.proj.Forward(nn.HConcat(heads...))
}
