package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tanq16/partget/internal/utils"
	"gopkg.in/yaml.v3"
)

// Printer writes stage messages, the progress table and the run summary.
// It is safe for concurrent use; the progress monitor renders from its own
// goroutine.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

func (p *Printer) println(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, text)
}

func (p *Printer) Pending(text string) {
	p.println(FPending(StyleSymbols["pending"] + " " + text))
}

func (p *Printer) Success(text string) {
	p.println(FSuccess(StyleSymbols["pass"] + " " + text))
}

func (p *Printer) Warning(text string) {
	p.println(FWarning(StyleSymbols["warning"] + " " + text))
}

func (p *Printer) Error(err error) {
	p.println(FError(StyleSymbols["fail"] + " " + err.Error()))
}

func (p *Printer) Info(text string) {
	p.println(FInfo(StyleSymbols["info"] + " " + text))
}

func (p *Printer) Progress(line string) {
	p.println(FStream(line))
}

func (p *Printer) ProgressHeader(line string) {
	p.println(FHeader(line))
}

// ProgressRenderer returns a render callback that styles the first line as
// the table header.
func (p *Printer) ProgressRenderer() func(string) {
	var once sync.Once
	return func(line string) {
		header := false
		once.Do(func() { header = true })
		if header {
			p.ProgressHeader(line)
			return
		}
		p.Progress(line)
	}
}

func (p *Printer) Summary(meta *utils.TransferMetadata) {
	p.println(FDebug(rule()))
	p.println(FDetail(StyleSymbols["arrow"] + " " + meta.OutputPath))
	for _, line := range BenchmarkLines(meta) {
		p.println(FDebug(StyleSymbols["bullet"] + " " + line))
	}
	integrity := IntegrityLine(meta)
	switch meta.Integrity {
	case "Successful":
		p.println(FSuccess(StyleSymbols["pass"] + " " + integrity))
	case "Failed":
		p.println(FWarning(StyleSymbols["warning"] + " " + integrity))
	default:
		p.println(FInfo(StyleSymbols["info"] + " " + integrity))
	}
}

// WriteMetadata dumps meta as YAML.
func WriteMetadata(w io.Writer, meta *utils.TransferMetadata) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return err
	}
	return enc.Close()
}
