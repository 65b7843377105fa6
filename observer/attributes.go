package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for run spans and metrics.
var (
	AttrRunStage    = attribute.Key("run.stage")
	AttrRunOK       = attribute.Key("run.ok")
	AttrRunState    = attribute.Key("run.state")
	AttrRunExitCode = attribute.Key("run.exit_code")
	AttrStdinLines  = attribute.Key("run.stdin_lines")

	AttrTargetBytes = attribute.Key("target.bytes")
	AttrSourceBytes = attribute.Key("source.bytes")
)
