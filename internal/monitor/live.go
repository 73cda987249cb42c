package monitor

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Live is the full-screen terminal UI. One pane per target: a status
// header plus a scrolling latency chart, with an overall progress line
// at the bottom.
type Live struct {
	src  Source
	opts Options

	app      *tview.Application
	panes    map[string]*tview.TextView
	progress *tview.TextView
}

// NewLive builds the UI for the targets currently known to src.
func NewLive(src Source, opts Options) *Live {
	m := &Live{
		src:   src,
		opts:  opts,
		app:   tview.NewApplication(),
		panes: make(map[string]*tview.TextView),
	}

	flex := tview.NewFlex().SetDirection(tview.FlexRow)
	for _, snap := range src.Snapshots() {
		view := tview.NewTextView().SetDynamicColors(true)
		view.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", snap.Target))
		m.panes[snap.Target] = view
		flex.AddItem(view, 0, 1, false)
	}

	m.progress = tview.NewTextView().SetDynamicColors(true)
	m.progress.SetBorder(true).SetTitle(" progress (press [q] to stop) ")
	flex.AddItem(m.progress, 3, 0, false)

	m.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			m.app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				m.app.Stop()
				return nil
			}
		}
		return event
	})

	m.app.SetRoot(flex, true)
	return m
}

// Run drives the UI until the run finishes or the user quits. The
// returned stop function must be honored by the caller: a user quit is
// a cancellation request, not just a display change.
func (m *Live) Run(stop func()) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(m.opts.refresh())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.app.QueueUpdateDraw(m.redraw)
			case <-m.src.Done():
				// final state, then hand the terminal back
				m.app.QueueUpdateDraw(m.redraw)
				m.app.Stop()
				return
			case <-done:
				return
			}
		}
	}()

	err := m.app.Run()

	select {
	case <-m.src.Done():
	default:
		stop() // user quit before the run finished
	}
	return err
}

func (m *Live) redraw() {
	width, height := chartArea()
	for _, snap := range m.src.Snapshots() {
		view, ok := m.panes[snap.Target]
		if !ok {
			continue
		}

		color := "green"
		if exceeded(snap, m.opts.Threshold) {
			color = "red"
		}
		if snap.Err != nil {
			color = "yellow"
		}

		view.SetText(fmt.Sprintf("[%s]%s[-]\n%s",
			color,
			tview.Escape(StatusLine(snap, m.opts.Threshold)),
			tview.Escape(Chart(snap.Recent, width, height)),
		))
	}
	m.progress.SetText(tview.Escape(ProgressLine(m.src.Elapsed(), m.opts.Duration, m.src.Progress())))
}
