// Package nodetest provides small in-memory fakes of the node.Node
// capability interface, shared by _test.go files across packages that need
// a node to exercise without depending on a real simulator-facing
// implementation.
package nodetest

import (
	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/subst"
)

// Fake is a configurable node.Node implementation. Every method records
// its call count and arguments so tests can assert on interaction, and
// every fallible method's error is settable up front.
type Fake struct {
	KeyValue   string
	Class      node.VarClass
	ImplValue  node.ImplType
	Caps       node.Capability
	Internal   bool // return value of Internalize

	LoadErr       error
	LoadStaticErr error
	WriteErr      error
	InitErr       error

	LoadCalls          int
	LoadStaticCalls    int
	WriteCalls         int
	InitializeCalls    int
	InitializeIens     []int
	InvalidateCalls    int
	FreeDataCalls      int

	LastReportStep int
	LastIens       int
	LastStep1      int

	MarshalErr   error
	UnmarshalErr error
	Stored       []byte
}

var _ node.Node = (*Fake)(nil)

func New(key string, class node.VarClass, impl node.ImplType) *Fake {
	return &Fake{
		KeyValue:  key,
		Class:     class,
		ImplValue: impl,
		Caps:      node.CapRead | node.CapWrite | node.CapInitialize,
		Internal:  true,
	}
}

func (f *Fake) Key() string           { return f.KeyValue }
func (f *Fake) VarClass() node.VarClass { return f.Class }
func (f *Fake) Impl() node.ImplType    { return f.ImplValue }
func (f *Fake) HasCap(c node.Capability) bool {
	return f.Caps&c != 0
}

func (f *Fake) EclLoad(runPath string, summary node.SummarySource, block node.RestartSource, reportStep, iens int) error {
	f.LoadCalls++
	f.LastReportStep = reportStep
	f.LastIens = iens
	return f.LoadErr
}

func (f *Fake) EclLoadStatic(payload []byte, reportStep, iens int) error {
	f.LoadStaticCalls++
	f.LastReportStep = reportStep
	f.LastIens = iens
	return f.LoadStaticErr
}

func (f *Fake) EclWrite(runPath string, sink node.RestartSink, step1 int) error {
	f.WriteCalls++
	f.LastStep1 = step1
	if sink != nil {
		_ = sink.WriteKeyword(f.KeyValue, []byte(f.KeyValue))
	}
	return f.WriteErr
}

func (f *Fake) Initialize(iens int) error {
	f.InitializeCalls++
	f.InitializeIens = append(f.InitializeIens, iens)
	return f.InitErr
}

func (f *Fake) Internalize(reportStep int) bool { return f.Internal }

func (f *Fake) InvalidateCache() { f.InvalidateCalls++ }

func (f *Fake) FreeData() { f.FreeDataCalls++ }

// WireSubstParent satisfies the optional interface noderegistry.Add probes
// for when wiring a GEN_KW node's private substitution parent.
func (f *Fake) WireSubstParent(_ *subst.Table) {}

func (f *Fake) Marshal() ([]byte, error) {
	if f.MarshalErr != nil {
		return nil, f.MarshalErr
	}
	if f.Stored != nil {
		return f.Stored, nil
	}
	return []byte(f.KeyValue), nil
}

func (f *Fake) Unmarshal(data []byte) error {
	f.Stored = data
	return f.UnmarshalErr
}

// Summary is an in-memory node.SummarySource fake.
type Summary struct {
	Values map[string]map[int]float64
	Times  map[int]int64
	Last   int
}

var _ node.SummarySource = (*Summary)(nil)

func NewSummary() *Summary {
	return &Summary{Values: map[string]map[int]float64{}, Times: map[int]int64{}}
}

func (s *Summary) Set(key string, reportStep int, value float64) {
	if s.Values[key] == nil {
		s.Values[key] = map[int]float64{}
	}
	s.Values[key][reportStep] = value
	if reportStep > s.Last {
		s.Last = reportStep
	}
}

func (s *Summary) SetTime(reportStep int, t int64) { s.Times[reportStep] = t }

func (s *Summary) Value(key string, reportStep int) (float64, bool) {
	m, ok := s.Values[key]
	if !ok {
		return 0, false
	}
	v, ok := m[reportStep]
	return v, ok
}

func (s *Summary) ReportTime(reportStep int) (int64, bool) {
	t, ok := s.Times[reportStep]
	return t, ok
}

func (s *Summary) LastReportStep() int { return s.Last }

// RestartBlock is an in-memory node.RestartSource fake.
type RestartBlock struct {
	Data map[string][]byte
}

var _ node.RestartSource = (*RestartBlock)(nil)

func NewRestartBlock() *RestartBlock { return &RestartBlock{Data: map[string][]byte{}} }

func (b *RestartBlock) KeywordData(name string) ([]byte, bool) {
	d, ok := b.Data[name]
	return d, ok
}

// RestartSink is an in-memory node.RestartSink fake recording write order.
type RestartSink struct {
	Order []string
	Data  map[string][]byte
}

var _ node.RestartSink = (*RestartSink)(nil)

func NewRestartSink() *RestartSink { return &RestartSink{Data: map[string][]byte{}} }

func (s *RestartSink) WriteKeyword(name string, data []byte) error {
	s.Order = append(s.Order, name)
	s.Data[name] = data
	return nil
}
