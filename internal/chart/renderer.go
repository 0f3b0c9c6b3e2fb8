package chart

// Renderer draws views. Render is called once per view with the full
// padded series; later changes arrive through the returned handle.
type Renderer interface {
	Render(v View) UpdateHandle
	Remove(v View)
}

// UpdateHandle receives the changes of one rendered view. The view carries
// the full, current domains and interactive state but no Points; the delta
// holds only what changed.
type UpdateHandle interface {
	Apply(v View, d Delta)
}

// NopRenderer discards everything. It lets a coordinator run headless.
type NopRenderer struct{}

func (NopRenderer) Render(View) UpdateHandle { return nopHandle{} }
func (NopRenderer) Remove(View)              {}

type nopHandle struct{}

func (nopHandle) Apply(View, Delta) {}
