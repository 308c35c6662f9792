// Package testutil provides test infrastructure built on the component
// lifecycle.
//
// A TestComponent is a component.Component with Reset, so fixtures can be
// started once and cleared between cases:
//
//	func TestCalls(t *testing.T) {
//	    origin := fixture.NewOrigin()
//	    testutil.T(t).Setup(origin)
//	    // origin is stopped when the test ends
//	}
//
// Several components can be managed together:
//
//	m := testutil.NewManager(ctx)
//	_ = m.Add(origin)
//	_ = m.Add(proxy)
//	if err := m.StartAll(); err != nil { ... }
//	defer m.StopAll()
//
// The fixture subpackage holds the origin server and forward proxy used by
// the engine tests.
package testutil
