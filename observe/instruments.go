package observe

// Instruments bundles what the client needs to report telemetry.
type Instruments struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// NewInstruments builds instruments from an Observer.
func NewInstruments(obs Observer) (*Instruments, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:  NewTracer(obs.Tracer()),
		Metrics: metrics,
		Logger:  obs.Logger(),
	}, nil
}

// NopInstruments returns instruments that record nothing.
func NopInstruments() *Instruments {
	return &Instruments{
		Tracer:  NopTracer(),
		Metrics: NopMetrics(),
		Logger:  NopLogger(),
	}
}

// WithDefaults returns a copy of i with nil members replaced by no-ops.
// A nil receiver yields NopInstruments.
func (i *Instruments) WithDefaults() *Instruments {
	if i == nil {
		return NopInstruments()
	}
	out := *i
	if out.Tracer == nil {
		out.Tracer = NopTracer()
	}
	if out.Metrics == nil {
		out.Metrics = NopMetrics()
	}
	if out.Logger == nil {
		out.Logger = NopLogger()
	}
	return &out
}

