package gfx

import "github.com/gobuffalo/packr"

// ShaderSources bundles the canonical GLSL programs used by the
// compositor: one vertex stage shared by every pass, an opaque fragment
// stage for the background and an alpha-blended one for overlays.
type ShaderSources struct {
	QuadVertex         string
	BackgroundFragment string
	OverlayFragment    string
}

var shaderBox = packr.NewBox("./shaders")

// LoadShaderSources reads the embedded shader sources.
func LoadShaderSources() (ShaderSources, error) {
	var (
		src ShaderSources
		err error
	)
	if src.QuadVertex, err = shaderBox.MustString("quad.vert"); err != nil {
		return ShaderSources{}, err
	}
	if src.BackgroundFragment, err = shaderBox.MustString("background.frag"); err != nil {
		return ShaderSources{}, err
	}
	if src.OverlayFragment, err = shaderBox.MustString("overlay.frag"); err != nil {
		return ShaderSources{}, err
	}
	return src, nil
}
