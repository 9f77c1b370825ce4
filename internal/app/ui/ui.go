package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"yashubustudio/custmapper/categorizer"
	"yashubustudio/custmapper/internal/app"
)

const allSources = "All sources"

type tableColumn struct {
	Title  string
	Width  float32
	Render func(categorizer.Record) string
}

var reviewColumns = []tableColumn{
	{Title: "Name", Width: 320, Render: func(r categorizer.Record) string { return r.Name }},
	{Title: "Parent group", Width: 260, Render: func(r categorizer.Record) string { return r.ParentGroup }},
	{Title: "Category", Width: 130, Render: func(r categorizer.Record) string { return string(r.Category) }},
	{Title: "Source", Width: 130, Render: func(r categorizer.Record) string { return string(r.Source) }},
}

type uiState struct {
	session  *app.Session
	pipeline app.Runner
	cfg      categorizer.Config
	logger   *zap.Logger

	w        fyne.Window
	table    *widget.Table
	rows     []categorizer.Record
	filter   app.Filter
	selected int

	search      *widget.Entry
	sourceSel   *widget.Select
	nameLabel   *widget.Label
	categorySel *widget.Select
	groupEntry  *widget.Entry
	statusBind  binding.String
	logBind     binding.String

	runBtn     *widget.Button
	stopBtn    *widget.Button
	confirmBtn *widget.Button
	reopenBtn  *widget.Button
	cancelRun  context.CancelFunc
}

func buildUI(a fyne.App, session *app.Session, pipeline app.Runner, cfg categorizer.Config, logger *zap.Logger, logBind binding.String) *uiState {
	u := &uiState{
		session:  session,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		selected: -1,
		logBind:  logBind,
	}
	u.w = a.NewWindow("Customer Group Mapper - Ledger Review")

	u.statusBind = binding.NewString()

	u.search = widget.NewEntry()
	u.search.SetPlaceHolder("Filter by name or group")
	u.search.OnChanged = func(q string) {
		u.filter.Query = q
		u.refresh()
	}
	sources := []string{allSources}
	for _, p := range categorizer.KnownProvenances {
		sources = append(sources, string(p))
	}
	u.sourceSel = widget.NewSelect(sources, nil)
	u.sourceSel.SetSelected(allSources)
	u.sourceSel.OnChanged = func(v string) {
		u.filter.Source = ""
		if v != allSources {
			u.filter.Source = categorizer.Provenance(v)
		}
		u.refresh()
	}

	u.table = widget.NewTable(
		func() (int, int) { return len(u.rows) + 1, len(reviewColumns) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			if id.Row == 0 {
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				lbl.SetText(reviewColumns[id.Col].Title)
				return
			}
			lbl.TextStyle = fyne.TextStyle{}
			if id.Row-1 >= len(u.rows) {
				lbl.SetText("")
				return
			}
			lbl.SetText(reviewColumns[id.Col].Render(u.rows[id.Row-1]))
		},
	)
	for i, col := range reviewColumns {
		u.table.SetColumnWidth(i, col.Width)
	}
	u.table.OnSelected = func(id widget.TableCellID) { u.selectRow(id.Row - 1) }

	u.nameLabel = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	u.categorySel = widget.NewSelect(categoryOptions(cfg), nil)
	u.groupEntry = widget.NewEntry()
	u.groupEntry.SetPlaceHolder("Parent group")
	u.confirmBtn = widget.NewButtonWithIcon("Confirm", theme.ConfirmIcon(), func() { u.onConfirm() })
	u.reopenBtn = widget.NewButtonWithIcon("Reopen", theme.ContentUndoIcon(), func() { u.onReopen() })
	u.confirmBtn.Disable()
	u.reopenBtn.Disable()

	saveBtn := widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), func() { u.onSave() })
	reloadBtn := widget.NewButtonWithIcon("Reload", theme.ViewRefreshIcon(), func() { u.onReload() })
	u.runBtn = widget.NewButtonWithIcon("Run on file", theme.MediaPlayIcon(), func() { u.onRun() })
	u.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() { u.onStop() })
	u.stopBtn.Disable()

	logView := widget.NewEntryWithData(logBind)
	logView.MultiLine = true
	logView.Wrapping = fyne.TextWrapWord
	logView.Disable()

	editor := container.NewVBox(
		widget.NewLabelWithStyle("Selected record", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.nameLabel,
		widget.NewForm(
			widget.NewFormItem("Category", u.categorySel),
			widget.NewFormItem("Group", u.groupEntry),
		),
		container.NewGridWithColumns(2, u.confirmBtn, u.reopenBtn),
		widget.NewSeparator(),
		container.NewGridWithColumns(2, saveBtn, reloadBtn),
		container.NewGridWithColumns(2, u.runBtn, u.stopBtn),
		widget.NewLabelWithData(u.statusBind),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Log", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
	)
	left := container.NewBorder(editor, nil, nil, nil, logView)
	top := container.NewBorder(nil, nil, nil, u.sourceSel, u.search)
	right := container.NewBorder(top, nil, nil, nil, u.table)
	split := container.NewHSplit(left, right)
	split.Offset = 0.3

	u.w.SetContent(split)
	u.w.Resize(fyne.NewSize(1280, 780))
	u.w.SetCloseIntercept(u.onClose)
	u.refresh()
	return u
}

func categoryOptions(cfg categorizer.Config) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c categorizer.Category) {
		if s := string(c); s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, c := range cfg.CategoryNames() {
		add(c)
	}
	for _, c := range categorizer.KnownCategories {
		add(c)
	}
	return out
}

func (u *uiState) refresh() {
	u.rows = u.session.Records(u.filter)
	u.selected = -1
	u.table.UnselectAll()
	u.table.Refresh()
	u.clearEditor()
	u.updateStatus("")
}

func (u *uiState) updateStatus(msg string) {
	counts := u.session.Counts()
	parts := make([]string, 0, len(categorizer.KnownProvenances))
	for _, p := range categorizer.KnownProvenances {
		parts = append(parts, fmt.Sprintf("%s %d", p, counts[p]))
	}
	status := fmt.Sprintf("%d shown / %d records (%s)", len(u.rows), u.session.Len(), strings.Join(parts, ", "))
	if u.session.Dirty() {
		status += " - unsaved"
	}
	if msg != "" {
		status = msg + "\n" + status
	}
	_ = u.statusBind.Set(status)
}

func (u *uiState) selectRow(idx int) {
	if idx < 0 || idx >= len(u.rows) {
		u.clearEditor()
		return
	}
	u.selected = idx
	rec := u.rows[idx]
	u.nameLabel.SetText(rec.Name)
	u.categorySel.SetSelected(string(rec.Category))
	u.groupEntry.SetText(rec.ParentGroup)
	u.confirmBtn.Enable()
	u.reopenBtn.Enable()
}

func (u *uiState) clearEditor() {
	u.selected = -1
	u.nameLabel.SetText("")
	u.categorySel.ClearSelected()
	u.groupEntry.SetText("")
	u.confirmBtn.Disable()
	u.reopenBtn.Disable()
}

func (u *uiState) onConfirm() {
	if u.selected < 0 {
		return
	}
	name := u.rows[u.selected].Name
	if _, err := u.session.Override(name, categorizer.Category(u.categorySel.Selected), u.groupEntry.Text); err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	u.refresh()
}

func (u *uiState) onReopen() {
	if u.selected < 0 {
		return
	}
	if err := u.session.Reopen(u.rows[u.selected].Name); err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	u.refresh()
}

func (u *uiState) onSave() {
	if err := u.session.Save(); err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	u.updateStatus("Saved " + u.session.Path())
}

func (u *uiState) onReload() {
	reload := func() {
		if err := u.session.Reload(); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.refresh()
	}
	if !u.session.Dirty() {
		reload()
		return
	}
	dialog.ShowConfirm("Discard edits", "Discard unsaved edits and reload the ledger?", func(ok bool) {
		if ok {
			reload()
		}
	}, u.w)
}

func (u *uiState) onRun() {
	if u.session.Dirty() {
		dialog.ShowError(app.ErrUnsavedEdits, u.w)
		return
	}
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		u.startRun(path)
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".csv", ".tsv", ".txt"}))
	fd.Show()
}

func (u *uiState) startRun(path string) {
	table, err := categorizer.ParseInput(path, categorizer.InputParseOptions{NameColumn: u.cfg.InputColumn})
	if err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	names := table.Names()
	if len(names) == 0 {
		dialog.ShowError(errors.New("input file does not contain any names"), u.w)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	u.cancelRun = cancel
	u.runBtn.Disable()
	u.stopBtn.Enable()
	u.updateStatus(fmt.Sprintf("Running on %d names...", len(names)))

	go func() {
		summary, err := u.session.Run(ctx, u.pipeline, names)
		cancel()
		fyne.Do(func() {
			u.cancelRun = nil
			u.runBtn.Enable()
			u.stopBtn.Disable()
			if err != nil {
				u.logger.Error("Run failed", zap.Error(err))
				dialog.ShowError(err, u.w)
				u.refresh()
				return
			}
			u.refresh()
			u.updateStatus(fmt.Sprintf("Added %d records (%d remote calls, breaker open: %t)",
				summary.Added, summary.RemoteCalls, summary.BreakerOpen))
		})
	}()
}

func (u *uiState) onStop() {
	if u.cancelRun != nil {
		u.cancelRun()
	}
}

func (u *uiState) onClose() {
	if !u.session.Dirty() {
		u.w.Close()
		return
	}
	dialog.ShowConfirm("Unsaved edits", "Close without saving the ledger?", func(ok bool) {
		if ok {
			u.w.Close()
		}
	}, u.w)
}
