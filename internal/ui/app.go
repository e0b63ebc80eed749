package ui

import (
	"context"
	"time"

	"ConceptCanvas/internal/export"
	"ConceptCanvas/internal/state"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

type Options struct {
	Title     string
	ShareLink string
	// Status is polled for the status bar, e.g. the sync session state.
	Status func() string
	// Reconnect backs the toolbar's reconnect button. Nil hides it.
	Reconnect func(context.Context) error
}

// Run opens the board window and blocks until it is closed.
func Run(ctx context.Context, board *Board, opts Options, logger *zap.Logger) {
	a := app.NewWithID("io.conceptcanvas.board")
	w := a.NewWindow(opts.Title)
	w.Resize(fyne.NewSize(1280, 800))

	files := &fileActions{board: board, window: w, logger: logger.Named("ui")}
	extra := []widget.ToolbarItem{
		widget.NewToolbarAction(theme.DocumentSaveIcon(), files.save),
		widget.NewToolbarAction(theme.FolderOpenIcon(), files.open),
		widget.NewToolbarAction(theme.DownloadIcon(), files.export),
	}
	if opts.Reconnect != nil {
		extra = append(extra, NewReconnectAction(ctx, opts.Reconnect, files.logger))
	}
	toolbar := NewToolbar(board, extra...)
	layers := NewLayerPanel(board.Canvas())
	board.Canvas().Subscribe(func(change state.Change) {
		if change.Type == state.ChangeLayerUpdated {
			go fyne.Do(layers.Sync)
		}
	})

	status := widget.NewLabel("Ready")
	var bottom fyne.CanvasObject = status
	if opts.ShareLink != "" {
		link := widget.NewEntry()
		link.SetText(opts.ShareLink)
		copyBtn := widget.NewButtonWithIcon("", theme.ContentCopyIcon(), func() {
			w.Clipboard().SetContent(opts.ShareLink)
		})
		bottom = container.NewBorder(nil, nil, status, copyBtn, link)
	}
	if opts.Status != nil {
		go pollStatus(ctx, status, opts.Status)
	}

	w.SetContent(container.NewBorder(toolbar, bottom, nil, layers.Content(), board))
	w.ShowAndRun()
}

func pollStatus(ctx context.Context, label *widget.Label, status func() string) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			text := status()
			fyne.Do(func() { label.SetText(text) })
		}
	}
}

type fileActions struct {
	board  *Board
	window fyne.Window
	logger *zap.Logger
}

func (f *fileActions) save() {
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil || w == nil {
			return
		}
		defer w.Close()
		if err := f.board.Canvas().Document().Encode(w); err != nil {
			f.fail("save", err)
		}
	}, f.window)
	d.SetFileName("board.json")
	d.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	d.Show()
}

func (f *fileActions) open() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil || r == nil {
			return
		}
		defer r.Close()
		doc, err := state.DecodeDocument(r)
		if err != nil {
			f.fail("open", err)
			return
		}
		if err := f.board.Canvas().Load(doc); err != nil {
			f.fail("open", err)
		}
	}, f.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	d.Show()
}

// export writes PDF or PNG depending on the chosen extension.
func (f *fileActions) export() {
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil || w == nil {
			return
		}
		defer w.Close()
		if err := export.Write(w, w.URI().Extension(), f.board.Canvas().Document()); err != nil {
			f.fail("export", err)
		}
	}, f.window)
	d.SetFileName("board.pdf")
	d.SetFilter(storage.NewExtensionFileFilter([]string{".pdf", ".png"}))
	d.Show()
}

func (f *fileActions) fail(op string, err error) {
	f.logger.Error("File operation failed", zap.String("op", op), zap.Error(err))
	dialog.ShowError(err, f.window)
}
