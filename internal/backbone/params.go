package backbone

import "fmt"

// ParamKind distinguishes convolution kernels, which checkpoint import may
// need to transpose from an external axis order, from flat norm parameters.
type ParamKind int

const (
	KindConvKernel ParamKind = iota
	KindNormScale
	KindNormShift
)

// Param is a named view of one trainable tensor. Data aliases the live
// parameter storage; writing through it updates the model.
type Param struct {
	Name  string
	Kind  ParamKind
	Shape []int
	Data  []float32
}

// Params enumerates every trainable tensor in a stable order:
// root first, then block{k}/unit{j} parameters.
func (m *ResNetV2) Params() []Param {
	var out []Param

	out = append(out, Param{
		Name:  "root/conv/kernel",
		Kind:  KindConvKernel,
		Shape: m.rootConv.weight.Shape(),
		Data:  m.rootConv.weight.Data(),
	})
	out = append(out, normParams("root/gn", m.rootNorm)...)

	for k, stage := range m.stages {
		for j, u := range stage.units {
			prefix := fmt.Sprintf("block%d/unit%d", k+1, j+1)
			convs := [3]*StdConv3D{u.conv1, u.conv2, u.conv3}
			norms := [3]*GroupNorm{u.gn1, u.gn2, u.gn3}
			for i := 0; i < 3; i++ {
				out = append(out, Param{
					Name:  fmt.Sprintf("%s/conv%d/kernel", prefix, i+1),
					Kind:  KindConvKernel,
					Shape: convs[i].weight.Shape(),
					Data:  convs[i].weight.Data(),
				})
				out = append(out, normParams(fmt.Sprintf("%s/gn%d", prefix, i+1), norms[i])...)
			}
			if u.proj != nil {
				out = append(out, Param{
					Name:  prefix + "/conv_proj/kernel",
					Kind:  KindConvKernel,
					Shape: u.proj.conv.weight.Shape(),
					Data:  u.proj.conv.weight.Data(),
				})
				out = append(out, normParams(prefix+"/gn_proj", u.proj.norm)...)
			}
		}
	}

	return out
}

func normParams(prefix string, g *GroupNorm) []Param {
	return []Param{
		{
			Name:  prefix + "/scale",
			Kind:  KindNormScale,
			Shape: []int{g.channels},
			Data:  g.scale,
		},
		{
			Name:  prefix + "/bias",
			Kind:  KindNormShift,
			Shape: []int{g.channels},
			Data:  g.shift,
		},
	}
}
