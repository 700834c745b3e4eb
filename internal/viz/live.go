package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gantrysim/internal/control"
	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/san-kum/gantrysim/internal/experiment"
	"github.com/san-kum/gantrysim/internal/physics"
	"github.com/san-kum/gantrysim/internal/sim"
)

const (
	canvasWidth     = 56
	canvasHeight    = 18
	historyCapacity = 300
	tuneFactor      = 1.1
)

type TickMsg time.Time

// Builder creates a fresh experiment. The live view calls it on start and
// on every reset.
type Builder func() (*experiment.Experiment, error)

type Option func(*Model)

// WithTick sets the wall-clock time between two control cycles.
func WithTick(d time.Duration) Option {
	return func(m *Model) { m.tick = d }
}

func WithGIFPath(path string) Option {
	return func(m *Model) { m.gifPath = path }
}

func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// tunable is one live-tunable scalar and the component owning it.
type tunable struct {
	owner   dynamo.Configurable
	name    string
	initial float64
}

// Model is the live crane view. Every tick runs one control cycle.
type Model struct {
	build  Builder
	exp    *experiment.Experiment
	cfg    sim.Config
	scene  Scene
	canvas *Canvas
	tick   time.Duration
	title  string

	running  bool
	done     bool
	err      error
	sway     []float64
	tunables []tunable
	selected int
	showHelp bool

	recording bool
	frames    []*image.Paletted
	gifPath   string
}

// NewModel builds the first experiment and starts its loop.
func NewModel(build Builder, opts ...Option) (Model, error) {
	m := Model{
		build:   build,
		scene:   CraneScene(),
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		tick:    time.Second / 20,
		title:   "GANTRY CRANE",
		running: true,
		gifPath: "crane.gif",
		sway:    make([]float64, 0, historyCapacity),
	}
	for _, opt := range opts {
		opt(&m)
	}
	if err := m.restart(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Run opens the live view and blocks until the user quits.
func Run(build Builder, opts ...Option) error {
	m, err := NewModel(build, opts...)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *Model) restart() error {
	exp, err := m.build()
	if err != nil {
		return err
	}
	cfg := exp.SimConfig()
	if err := exp.Simulator().Start(cfg); err != nil {
		return err
	}
	m.exp, m.cfg = exp, cfg
	m.err, m.done = nil, false
	m.sway = m.sway[:0]
	m.tunables = collectTunables(exp)
	if m.selected >= len(m.tunables) {
		m.selected = 0
	}
	m.scene.Draw(m.canvas, exp.Plant().State())
	return nil
}

func collectTunables(exp *experiment.Experiment) []tunable {
	var ts []tunable
	add := func(owner dynamo.Configurable) {
		params := owner.GetParams()
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ts = append(ts, tunable{owner: owner, name: name, initial: params[name]})
		}
	}
	add(exp.Plant())
	if c, ok := exp.Algorithm().(dynamo.Configurable); ok {
		add(c)
	}
	return ts
}

func (m Model) Init() tea.Cmd {
	return m.nextTick()
}

func (m Model) nextTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Update handles input events and steps the loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "space":
			m.running = !m.running
		case "s":
			if !m.running {
				m.step()
			}
		case "r":
			if err := m.restart(); err != nil {
				m.err = err
			}
		case "tab":
			m.cycleTunable(1)
		case "shift+tab":
			m.cycleTunable(-1)
		case "up", "k":
			m.adjust(tuneFactor)
		case "down", "j":
			m.adjust(1 / tuneFactor)
		case "t":
			NextTheme()
		case "g":
			m.toggleRecording()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, m.nextTick()
	}
	return m, nil
}

// step runs one control cycle and redraws.
func (m *Model) step() {
	if m.done || m.exp == nil {
		return
	}
	s := m.exp.Simulator()
	if err := s.Cycle(); err != nil {
		m.err = err
		m.running = false
		m.done = true
		return
	}
	x := m.exp.Plant().State()
	m.sway = append(m.sway, x[physics.SwayAngle])
	if len(m.sway) > historyCapacity {
		m.sway = m.sway[1:]
	}
	m.scene.Draw(m.canvas, x)
	if m.recording {
		m.captureFrame()
	}
	if m.cfg.Cycles > 0 && s.Result().Cycles >= m.cfg.Cycles {
		m.done = true
	}
}

func (m *Model) cycleTunable(dir int) {
	if len(m.tunables) == 0 {
		return
	}
	m.selected = (m.selected + dir + len(m.tunables)) % len(m.tunables)
}

func (m *Model) adjust(factor float64) {
	if len(m.tunables) == 0 {
		return
	}
	t := m.tunables[m.selected]
	val := t.owner.GetParams()[t.name]
	if val == 0 {
		val = 1e-3
	}
	m.err = t.owner.SetParam(t.name, val*factor)
}

var symbolText = strings.NewReplacer(`\dot{\theta}`, "θ'", `\theta`, "θ", `\dot{`, "", "}", "'")

// View renders the canvas next to the state panel.
func (m Model) View() string {
	st := newStyles(CurrentTheme)
	plant := m.exp.Plant()
	res := m.exp.Simulator().Result()
	x := plant.State()

	var s strings.Builder
	switch {
	case m.err != nil && m.done:
		s.WriteString(st.errText.Render("ABORTED"))
	case m.done:
		s.WriteString(st.paused.Render("DONE"))
	case m.running:
		s.WriteString(st.running.Render("RUNNING"))
	default:
		s.WriteString(st.paused.Render("PAUSED"))
	}
	if m.recording {
		s.WriteString("  " + st.recording.Render(fmt.Sprintf("REC %d", len(m.frames))))
	}
	s.WriteString("\n\n")

	cycles := fmt.Sprintf("%d", res.Cycles)
	if m.cfg.Cycles > 0 {
		cycles += fmt.Sprintf(" / %d", m.cfg.Cycles)
	}
	s.WriteString(st.label.Render("t") + st.value.Render(fmt.Sprintf("%.2f s", plant.Time())) + "\n")
	s.WriteString(st.label.Render("cycle") + st.value.Render(cycles) + "\n\n")

	for i, sig := range plant.OutputSignals() {
		line := fmt.Sprintf("%9.4f %s", x[i], sig.Unit)
		if sig.Contains(x[i]) {
			line = st.value.Render(line)
		} else {
			line = st.errText.Render(line)
		}
		s.WriteString(st.label.Render(symbolText.Replace(sig.Symbol)) + line + "\n")
	}
	if u := res.Input.Last(); u != nil {
		for i, sig := range plant.InputSignals() {
			s.WriteString(st.label.Render(sig.Symbol) + st.value.Render(fmt.Sprintf("%9.4f %s", u[i], sig.Unit)) + "\n")
		}
	}

	if gr, ok := m.exp.Algorithm().(control.GainReporter); ok {
		if active, err := gr.FilterGains(m.cfg.GainTolerance); err == nil {
			s.WriteString(st.label.Render("gains") + st.value.Render(fmt.Sprintf("%d of %d active", len(active), len(gr.FlatGains()))) + "\n")
		}
	}

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	s.WriteString("\n")
	for _, name := range names {
		s.WriteString(st.label.Render(name) + st.value.Render(fmt.Sprintf("%.4f", res.Metrics[name])) + "\n")
	}

	if len(m.sway) > 1 {
		chart := asciigraph.Plot(m.sway, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Sway angle [rad]"))
		s.WriteString("\n" + st.graph.Render(chart) + "\n")
	}

	s.WriteString("\n" + Separator(40) + "\n")
	for i, t := range m.tunables {
		val := t.owner.GetParams()[t.name]
		ratio := 0.0
		if t.initial > 0 {
			ratio = val / (2 * t.initial)
		}
		line := fmt.Sprintf("%-13s %s %.3g", t.name, ProgressBar(ratio, 10), val)
		if i == m.selected {
			s.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.value.Render(line) + "\n")
		}
	}
	if m.err != nil {
		s.WriteString("\n" + st.errText.Render(m.err.Error()) + "\n")
	}
	s.WriteString(st.help.Render("SP pause  S step  R reset  Q quit\nTAB select  ↑↓ tune  T theme  G gif  ? help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, st.canvas.Render(m.canvas.String()), st.panel.Render(s.String()))
	view := lipgloss.JoinVertical(lipgloss.Left, st.header.Render(m.title), main)
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

const helpText = `
  Space      pause / resume
  S          single cycle while paused
  R          rebuild the experiment
  Tab        next tunable (Shift+Tab previous)
  Up/K       tunable x1.1
  Down/J     tunable /1.1
  T          next theme
  G          start / stop GIF recording
  Q          quit
`

func (m *Model) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = m.frames[:0]
		return
	}
	m.recording = false
	if err := m.saveGIF(); err != nil {
		m.err = err
	}
	m.frames = nil
}

// captureFrame rasterises the canvas, one dot to a 4x4 block.
func (m *Model) captureFrame() {
	const dot = 4
	w, h := m.canvas.Pixels()
	img := image.NewPaletted(image.Rect(0, 0, w*dot, h*dot), color.Palette{color.Black, color.White})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !m.canvas.Lit(x, y) {
				continue
			}
			for dy := 0; dy < dot; dy++ {
				for dx := 0; dx < dot; dx++ {
					img.SetColorIndex(x*dot+dx, y*dot+dy, 1)
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() error {
	if len(m.frames) == 0 {
		return nil
	}
	delay := int(m.tick / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}
	anim := gif.GIF{}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}
	f, err := os.Create(m.gifPath)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, &anim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
