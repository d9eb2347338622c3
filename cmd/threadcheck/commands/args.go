package commands

import "time"

// RootArgs holds the flags shared by every check command.
type RootArgs struct {
	logLevel   *string
	logFormat  *string
	goroutines *int
	iterations *int
	timeout    *time.Duration
}

// NewRootArgs returns RootArgs with storage for every flag.
func NewRootArgs() *RootArgs {
	return &RootArgs{
		logLevel:   new(string),
		logFormat:  new(string),
		goroutines: new(int),
		iterations: new(int),
		timeout:    new(time.Duration),
	}
}

func (a *RootArgs) GetLogLevel() string {
	return *a.logLevel
}

func (a *RootArgs) GetLogFormat() string {
	return *a.logFormat
}

func (a *RootArgs) GetGoroutines() int {
	return *a.goroutines
}

func (a *RootArgs) GetIterations() int {
	return *a.iterations
}

func (a *RootArgs) GetTimeout() time.Duration {
	return *a.timeout
}
