package drawio

// Logger receives diagnostics from a Rewriter. *log.Logger from
// github.com/charmbracelet/log satisfies it.
type Logger interface {
	Warn(msg interface{}, keyvals ...interface{})
	Debug(msg interface{}, keyvals ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warn(interface{}, ...interface{})  {}
func (nopLogger) Debug(interface{}, ...interface{}) {}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the diagnostics sink. A nil logger discards diagnostics.
func WithLogger(l Logger) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}
