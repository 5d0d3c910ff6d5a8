package steps

import "github.com/shaiso/Conveyor/internal/engine"

// Имена фабрик leaf runner'ов.
const (
	FactoryNoop         = "noop"
	FactoryError        = "error"
	FactoryDelay        = "delay"
	FactoryHTTP         = "http"
	FactoryCommand      = "command"
	FactoryReportDigest = "reportDigest"
)

// Register регистрирует все стандартные фабрики leaf runner'ов.
func Register(r *engine.Registry) {
	r.Register(FactoryNoop, NewNoopFactory())
	r.Register(FactoryError, NewErrorFactory())
	r.Register(FactoryDelay, NewDelayFactory())
	r.Register(FactoryHTTP, NewHTTPFactory())
	r.Register(FactoryCommand, NewCommandFactory())
	r.Register(FactoryReportDigest, NewReportDigestFactory())
}

// DefaultRegistry создаёт реестр со всеми стандартными leaf фабриками.
// Фабрику составного workflow добавляет orchestrator.Register.
func DefaultRegistry() *engine.Registry {
	r := engine.NewRegistry()
	Register(r)
	return r
}
