package main

// @title           Broxiva Subscriptions API
// @version         1.0
// @description     Subscription plans, billing and entitlements for the Broxiva marketplace.

// @contact.name   API Support

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/app"
)

// fxLogger routes fx lifecycle events through the application logger.
func fxLogger(log *zap.SugaredLogger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Desugar().Named("fx")}
}

func main() {
	os.Exit(run())
}

// run blocks until SIGINT/SIGTERM and returns the process exit code.
func run() int {
	a := fx.New(app.Module, fx.WithLogger(fxLogger))
	if err := a.Err(); err != nil {
		// logger may not be built yet
		zap.NewExample().Sugar().Errorf("failed to build app: %v", err)
		return 1
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to start app: %v", err)
		return 1
	}

	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop app: %v", err)
		return 1
	}
	return sig.ExitCode
}
