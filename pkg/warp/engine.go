// Package warp provides the non-rigid registration engine used by
// model-driven registration. The engine contract takes a moving and a
// fixed frame plus an opaque configuration and returns the warped moving
// frame together with the pixel-wise displacement increment that was
// applied, relative to the moving frame's current position.
package warp

// Config is an opaque key/value option set forwarded verbatim from the
// caller to the engine (e.g. {"MaximumNumberOfIterations": 256,
// "GridSpacing": 8}). Unknown keys are ignored so configurations written
// for other engines pass through unharmed.
type Config map[string]interface{}

// intOption reads an integer option, accepting the numeric types YAML and
// JSON decoders produce.
func (c Config) intOption(key string, def int) int {
	v, ok := c[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}
