package metrics

import (
	"go.uber.org/fx"
)

func provideBusiness() (*Business, error) {
	return NewBusiness(nil)
}

var Module = fx.Options(
	fx.Provide(provideBusiness),
)
