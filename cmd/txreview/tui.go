package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/brojonat/txreview/service/review"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// choice is a drop-down that remembers its option texts.
type choice struct {
	*tview.DropDown
	options []string
}

func (c choice) set(value string) {
	i := slices.Index(c.options, value)
	if i < 0 {
		i = 0
	}
	c.SetCurrentOption(i)
}

func (c choice) value() string {
	_, text := c.GetCurrentOption()
	return text
}

// reviewer is the terminal front-end of one review session. Every method except
// attach runs on the tview event goroutine once run has been called.
type reviewer struct {
	app   *tview.Application
	ctrl  *review.Controller
	limit int

	layout *tview.Flex
	form   *tview.Form
	status *tview.TextView
	log    *tview.TextView

	inputs          map[string]*tview.InputField
	kind            choice
	currency        choice
	foreignCurrency choice

	// version of the last rendered view; older views are dropped.
	version uint64
	// shown identifies the transaction currently loaded into the form.
	shown  string
	notice string
}

func newReviewer(ctrl *review.Controller, limit int) *reviewer {
	r := &reviewer{
		app:    tview.NewApplication(),
		ctrl:   ctrl,
		limit:  limit,
		form:   tview.NewForm(),
		inputs: make(map[string]*tview.InputField),
	}

	r.addInput("external_id", "External ID")
	r.addInput("description", "Description")
	r.addInput("date", "Date")
	r.addInput("source_account", "Source account")
	r.addInput("destination_account", "Destination account")
	r.addInput("amount", "Amount")
	r.kind = r.addChoice("Type", transactionTypeOptions())
	r.addInput("category_name", "Category")
	r.currency = r.addChoice("Currency", currencyOptions(false))
	r.addInput("foreign_amount", "Foreign amount")
	r.foreignCurrency = r.addChoice("Foreign currency", currencyOptions(true))
	r.addInput("notes", "Notes")
	r.form.AddButton("Submit", r.submit).
		AddButton("Quit", r.app.Stop)
	r.form.SetLabelColor(tcell.ColorViolet)
	r.form.SetFieldBackgroundColor(tcell.NewRGBColor(40, 40, 40))
	r.form.SetBorder(true)

	r.status = tview.NewTextView().SetDynamicColors(true)
	r.status.SetBorder(true).SetTitle(" Status ")

	r.log = tview.NewTextView().SetScrollable(true)
	r.log.SetBorder(true).SetTitle(" Server log ")

	help := tview.NewTextView().SetDynamicColors(true).
		SetText("[gray]Ctrl-S[-] submit  [gray]Tab[-] next field  [gray]Ctrl-Q[-] quit")

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(r.status, 6, 0, false).
		AddItem(r.log, 0, 1, false)
	body := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(r.form, 0, 2, true).
		AddItem(side, 0, 1, false)
	r.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(help, 1, 0, false)

	r.app.SetInputCapture(r.capture)
	r.render(ctrl.Snapshot())
	return r
}

// addInput adds a text field. Fields backed by a vocabulary get fuzzy suggestions.
func (r *reviewer) addInput(key, label string) {
	field := tview.NewInputField().SetLabel(label)
	field.SetAutocompleteFunc(func(text string) []string {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return r.ctrl.Suggest(key, text, r.limit)
	})
	field.SetAutocompletedFunc(func(text string, index, source int) bool {
		if source != tview.AutocompletedNavigate {
			field.SetText(text)
		}
		return source != tview.AutocompletedNavigate
	})
	r.inputs[key] = field
	r.form.AddFormItem(field)
}

func (r *reviewer) addChoice(label string, options []string) choice {
	c := choice{
		DropDown: tview.NewDropDown().SetLabel(label).SetOptions(options, nil),
		options:  options,
	}
	r.form.AddFormItem(c.DropDown)
	return c
}

// attach routes controller transitions to the UI. Listeners run on whichever goroutine
// caused the transition, including the event loop itself, so drawing is queued from a
// fresh goroutine and ordering is restored by View.Version.
func (r *reviewer) attach() {
	r.ctrl.Subscribe(func(v review.View) {
		go r.app.QueueUpdateDraw(func() {
			r.render(v)
		})
	})
}

func (r *reviewer) run() error {
	r.render(r.ctrl.Snapshot())
	if err := r.app.SetRoot(r.layout, true).EnableMouse(true).Run(); err != nil {
		return fmt.Errorf("failed to run review UI: %w", err)
	}
	return nil
}

func (r *reviewer) capture(e *tcell.EventKey) *tcell.EventKey {
	switch e.Key() {
	case tcell.KeyCtrlS:
		r.submit()
		return nil
	case tcell.KeyCtrlQ:
		r.app.Stop()
		return nil
	}
	return e
}

func (r *reviewer) render(v review.View) {
	if v.Version < r.version {
		return
	}
	r.version = v.Version

	// Reload the form only when a different transaction comes under review, so
	// vocabulary updates never clobber edits in progress.
	shown := fmt.Sprintf("%s/%d/%d/%s", v.Phase, v.Position, v.Total, v.Current.ExternalID)
	if shown != r.shown {
		r.shown = shown
		r.fill(v.Current)
	}

	r.form.SetTitle(formTitle(v))
	r.status.SetText(statusText(v, r.notice))
	r.log.SetText(v.LogText)
}

func (r *reviewer) fill(values review.FormValues) {
	r.inputs["external_id"].SetText(values.ExternalID)
	r.inputs["description"].SetText(values.Description)
	r.inputs["date"].SetText(values.Date)
	r.inputs["source_account"].SetText(values.SourceAccount)
	r.inputs["destination_account"].SetText(values.DestinationAccount)
	r.inputs["amount"].SetText(values.Amount)
	r.inputs["category_name"].SetText(values.CategoryName)
	r.inputs["foreign_amount"].SetText(values.ForeignAmount)
	r.inputs["notes"].SetText(values.Notes)
	r.kind.set(values.Type)
	r.currency.set(values.CurrencyCode)
	r.foreignCurrency.set(values.ForeignCurrencyCode)
}

func (r *reviewer) values() review.FormValues {
	return review.FormValues{
		ExternalID:          r.inputs["external_id"].GetText(),
		Description:         r.inputs["description"].GetText(),
		Date:                r.inputs["date"].GetText(),
		SourceAccount:       r.inputs["source_account"].GetText(),
		DestinationAccount:  r.inputs["destination_account"].GetText(),
		Amount:              r.inputs["amount"].GetText(),
		Type:                r.kind.value(),
		CategoryName:        r.inputs["category_name"].GetText(),
		CurrencyCode:        r.currency.value(),
		ForeignAmount:       r.inputs["foreign_amount"].GetText(),
		ForeignCurrencyCode: r.foreignCurrency.value(),
		Notes:               r.inputs["notes"].GetText(),
	}
}

func (r *reviewer) submit() {
	err := r.ctrl.SubmitForm(r.values())
	switch {
	case err == nil:
		r.notice = ""
		r.form.SetFocus(1)
	case errors.Is(err, review.ErrNoActiveBatch):
		r.notice = "nothing to submit"
	default:
		r.notice = err.Error()
	}
	r.render(r.ctrl.Snapshot())
}

func formTitle(v review.View) string {
	if v.Phase != review.PhaseReviewing {
		return " Transaction "
	}
	return fmt.Sprintf(" Transaction %d of %d ", v.Position, v.Total)
}

func statusText(v review.View, notice string) string {
	var b strings.Builder

	color := "green"
	switch {
	case v.WSConnectionClosed:
		color = "red"
	case v.ConnectionStatus != review.ConnOpen.String():
		color = "yellow"
	}
	fmt.Fprintf(&b, "Connection: [%s]%s[-]\n", color, v.ConnectionStatus)

	switch v.Phase {
	case review.PhaseReviewing:
		fmt.Fprintf(&b, "Reviewing %d of %d\n", v.Position, v.Total)
	case review.PhaseAwaitingBatch:
		b.WriteString("[yellow]Waiting for the decoded batch...[-]\n")
	default:
		b.WriteString("Nothing to review\n")
	}

	fmt.Fprintf(&b, "[gray]%d accounts, %d categories, %d descriptions[-]\n",
		len(v.Accounts), len(v.Categories), len(v.Descriptions))
	if notice != "" {
		fmt.Fprintf(&b, "[red]%s[-]", tview.Escape(notice))
	}
	return b.String()
}

func transactionTypeOptions() []string {
	options := make([]string, len(review.TransactionTypes))
	for i, t := range review.TransactionTypes {
		options[i] = string(t)
	}
	return options
}

// currencyOptions lists the currencies, led by an empty entry when the field is optional.
func currencyOptions(optional bool) []string {
	var options []string
	if optional {
		options = append(options, "")
	}
	for _, c := range review.Currencies {
		options = append(options, string(c))
	}
	return options
}
