package common

import (
	"sync"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestInitLoggersRepeated(t *testing.T) {
	// every server of a process initializes the loggers, the factory is installed once
	for _, level := range []string{"info", "debug", "error", ""} {
		if err := InitLoggers(level); err != nil {
			t.Fatalf("InitLoggers(%q): %v", level, err)
		}
	}
	if err := InitLoggers("verbose"); err == nil {
		t.Errorf("expected an error for an invalid level")
	}
	if err := InitLoggers("info"); err != nil {
		t.Fatalf("InitLoggers after an invalid level: %v", err)
	}
}

func TestInitLoggersWhileLogging(t *testing.T) {
	if err := InitLoggers("error"); err != nil {
		t.Fatal(err)
	}
	l := logger.GetLogger("rpc")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					l.Debugf("logging while the level changes")
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		level := "error"
		if i%2 == 0 {
			level = "warn"
		}
		if err := InitLoggers(level); err != nil {
			t.Errorf("InitLoggers(%q): %v", level, err)
		}
	}
	close(stop)
	wg.Wait()
	_ = InitLoggers("info")
}

func TestLoggerLevel(t *testing.T) {
	l := CreateLogger("test").(*dseqLogger)
	if !l.enabled(logger.INFO) || l.enabled(logger.DEBUG) {
		t.Errorf("expected the default level to be INFO")
	}
	l.SetLevel(logger.ERROR)
	if l.enabled(logger.WARNING) || !l.enabled(logger.ERROR) {
		t.Errorf("expected level ERROR after SetLevel")
	}
}
