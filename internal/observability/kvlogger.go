package observability

import "fmt"

// KVLogger adapts Logger to the slog-style signature (message plus
// alternating key/value pairs). Packages that only need Debug/Info/Warn/
// Error can declare that interface locally and accept either this or a
// test double.
type KVLogger struct {
	base *Logger
}

// NewKVLogger wraps a Logger in the key/value call style.
func NewKVLogger(base *Logger) *KVLogger {
	return &KVLogger{base: base}
}

func (k *KVLogger) Debug(msg string, args ...any) {
	k.base.DebugWithFields(msg, kvFields(args))
}

func (k *KVLogger) Info(msg string, args ...any) {
	k.base.InfoWithFields(msg, kvFields(args))
}

func (k *KVLogger) Warn(msg string, args ...any) {
	k.base.WarnWithFields(msg, kvFields(args))
}

func (k *KVLogger) Error(msg string, args ...any) {
	k.base.ErrorWithFields(msg, kvFields(args))
}

// kvFields folds alternating key/value arguments into a field map. A
// trailing key without a value is kept under "arg".
func kvFields(args []any) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["arg"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}
