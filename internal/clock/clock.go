package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock reports the current time. Services read time through it so expiry
// boundaries can be exercised in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func New() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(New),
)
