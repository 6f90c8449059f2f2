package logger

// ComponentLogger writes entries for one component, optionally with a set
// of fields attached to every entry.
type ComponentLogger struct {
	logger    *Logger
	component Component
	base      Fields
}

// With returns a logger that attaches fields to every entry.
func (cl *ComponentLogger) With(fields Fields) *ComponentLogger {
	return &ComponentLogger{logger: cl.logger, component: cl.component, base: merge(cl.base, fields)}
}

func (cl *ComponentLogger) Trace(message string, fields ...Fields) { cl.emit(TRACE, message, fields) }

func (cl *ComponentLogger) Debug(message string, fields ...Fields) { cl.emit(DEBUG, message, fields) }

func (cl *ComponentLogger) Info(message string, fields ...Fields) { cl.emit(INFO, message, fields) }

func (cl *ComponentLogger) Warn(message string, fields ...Fields) { cl.emit(WARN, message, fields) }

func (cl *ComponentLogger) Error(message string, fields ...Fields) { cl.emit(ERROR, message, fields) }

func (cl *ComponentLogger) emit(level Level, message string, fields []Fields) {
	cl.logger.write(level, cl.component, message, merge(append([]Fields{cl.base}, fields...)...))
}

// merge flattens sets into one map; later keys win. Nil when empty.
func merge(sets ...Fields) Fields {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	if n == 0 {
		return nil
	}
	out := make(Fields, n)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
