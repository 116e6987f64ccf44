package utils

// Guard runs a cleanup function on early return unless the caller marked success. It keeps
// partially built resources, like a half written file, from leaking out of error paths:
//
//	guard := NewGuard(func() { os.Remove(tmp) })
//	defer guard.OnFail()
//	...
//	guard.Success()
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a guard that calls cleanup from OnFail until Success is called.
func NewGuard(cleanup func()) *Guard {
	g := &Guard{}
	g.OnFail = func() {
		if !g.success {
			cleanup()
		}
	}
	return g
}

// Success disarms the guard.
func (g *Guard) Success() {
	g.success = true
}
