//go:build !linux

package desktop

// NewNotifier returns a no-op notifier on non-Linux platforms.
func NewNotifier(_, _ string) Notifier {
	return stubNotifier{}
}

// NewLauncher returns a no-op launcher on non-Linux platforms.
func NewLauncher(string) Launcher {
	return stubLauncher{}
}

type stubNotifier struct{}

func (stubNotifier) Notify(Notification) (uint32, error) { return 0, nil }
func (stubNotifier) Close(uint32) error                  { return nil }

type stubLauncher struct{}

func (stubLauncher) SetCount(int64, bool) error { return nil }
