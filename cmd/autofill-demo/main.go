// Command autofill-demo walks the engine through a scripted session: a form
// fixture is observed and classified, a stub prediction service answers the
// crowdsourced query, and survey prompts play the UI surface so you can pick
// a record, fill the form, unmask a card and submit.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/rs/zerolog"

	autofill "github.com/goliatone/go-autofill"
	"github.com/goliatone/go-autofill/internal/wire"
	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
	"github.com/goliatone/go-autofill/pkg/record"
	"github.com/goliatone/go-autofill/pkg/telemetry"
	"github.com/goliatone/go-autofill/pkg/unmask"
)

func main() {
	fixturePath := flag.String("fixture", "", "YAML session fixture (embedded default if empty)")
	verbose := flag.Bool("verbose", false, "log engine internals")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = zerolog.Nop()
	}

	fix, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(1)
	}

	srv := stubPredictionServer(fix)
	defer srv.Close()

	store := newMemoryStore(fix)
	engine, err := autofill.New(autofill.Config{
		PredictionBaseURL:    srv.URL,
		ClientVersion:        "autofill-demo/1.0",
		CrowdsourcingEnabled: true,
		UnmaskEnabled:        true,
	}, store, demoRisk{}, demoExchanger{}, autofill.WithLogger(log), autofill.WithTelemetry(telemetry.LogSink{Log: log}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}

	if err := run(engine, store, fix); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(engine *autofill.Engine, store *memoryStore, fix fixture) error {
	ctx := context.Background()
	live := fix.structure()

	engine.Observe(ctx, []*form.FormStructure{live})
	time.Sleep(200 * time.Millisecond) // let the stubbed query land
	printForm(live)

	rec, err := chooseRecord(store)
	if err != nil {
		return err
	}

	opts := autofill.FillOptions{}
	if card, ok := rec.(record.CreditCard); ok {
		if card.RequiresUnmask() {
			unmasked, err := runUnmask(ctx, engine, card)
			if err != nil {
				return err
			}
			rec = unmasked
		}
		if err := survey.AskOne(&survey.Password{Message: "Card verification code:"}, &opts.CVCOverride); err != nil {
			return err
		}
	}

	instructions, err := engine.Fill(live, targetFor(live, rec), rec, opts)
	if err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	fmt.Println("\nFill instructions:")
	for _, ins := range instructions {
		live.Field(ins.FieldIndex).Value = ins.Value
		fmt.Printf("  %-14s <- %q (notify=%v)\n", live.Field(ins.FieldIndex).Name, ins.Value, ins.Notify)
	}

	var submit bool
	if err := survey.AskOne(&survey.Confirm{Message: "Submit the form?", Default: true}, &submit); err != nil {
		return err
	}
	if submit {
		engine.HandleSubmission(ctx, live, autofill.SubmissionOptions{ObservedSubmission: true})
		engine.Reset() // drains the upload before we exit
		fmt.Println("Submitted; possible-type votes uploaded.")
	}
	return nil
}

// targetFor picks the interaction field: the first one whose resolved type
// matches the chosen record's kind.
func targetFor(s *form.FormStructure, rec record.Record) int {
	wantPayment := rec.RecordKind() == record.KindCreditCard
	for i := 0; i < s.FieldCount(); i++ {
		t := s.Field(i).OverallType()
		if t.Known() && fieldtype.IsPayment(t) == wantPayment {
			return i
		}
	}
	return 0
}

func chooseRecord(store *memoryStore) (record.Record, error) {
	labels := make([]string, 0, len(store.profiles)+len(store.cards))
	byLabel := make(map[string]record.Record)
	for _, p := range store.profiles {
		l := fmt.Sprintf("profile: %s <%s>", p.FullName(), p.Email)
		labels = append(labels, l)
		byLabel[l] = p
	}
	for _, c := range store.cards {
		l := fmt.Sprintf("card: %s ****%s", c.NameOnCard, c.LastFour)
		labels = append(labels, l)
		byLabel[l] = c
	}

	var picked string
	if err := survey.AskOne(&survey.Select{Message: "Fill from which record?", Options: labels}, &picked); err != nil {
		return nil, err
	}
	return byLabel[picked], nil
}

func runUnmask(ctx context.Context, engine *autofill.Engine, card record.CreditCard) (record.CreditCard, error) {
	results := make(chan autofill.UnmaskResult, 1)
	if err := engine.Unmask(ctx, card, func(r autofill.UnmaskResult) { results <- r }); err != nil {
		return card, fmt.Errorf("unmask: %w", err)
	}

	var code string
	if err := survey.AskOne(&survey.Password{Message: "Verify card (CVC):"}, &code); err != nil {
		return card, err
	}
	if err := engine.Unmasker.SubmitVerification(ctx, autofill.Verification{Code: code}); err != nil {
		return card, err
	}

	r := <-results
	if r.Err != nil {
		return card, fmt.Errorf("unmask: %w", r.Err)
	}
	fmt.Println("Card unmasked for this session.")
	return r.Card, nil
}

func printForm(s *form.FormStructure) {
	fmt.Printf("Observed %q on %s (signature %s)\n", s.Metadata.Name, s.Metadata.Host, s.Signature())
	for i := 0; i < s.FieldCount(); i++ {
		f := s.Field(i)
		fmt.Printf("  %-14s heuristic=%-14s server=%-14s section=%s\n",
			f.Name, f.HeuristicType, f.ServerType, f.Section)
	}
}

// stubPredictionServer answers queries with the fixture's scripted types and
// accepts uploads.
func stubPredictionServer(fix fixture) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			return
		}
		resp := wire.QueryResponse{}
		for _, f := range fix.Form.Fields {
			resp.Predictions = append(resp.Predictions, wire.Prediction{Type: f.serverType()})
		}
		w.Write(wire.EncodeQueryResponse(resp))
	}))
}

type demoRisk struct{}

func (demoRisk) FetchRiskData(_ context.Context, _ string, deliver func(string, error)) {
	deliver("demo-risk-token", nil)
}

type demoExchanger struct{}

func (demoExchanger) Exchange(_ context.Context, req unmask.Request) (string, error) {
	if len(req.Verification.Code) < 3 {
		return "", &unmask.Failure{Kind: unmask.FailureTransient, Msg: "code too short"}
	}
	return "4111111111111111", nil
}

type memoryStore struct {
	profiles []record.Profile
	cards    []record.CreditCard
}

func newMemoryStore(fix fixture) *memoryStore {
	return &memoryStore{profiles: fix.Profiles, cards: fix.Cards}
}

func (s *memoryStore) Profiles(context.Context) ([]record.Profile, error) {
	return s.profiles, nil
}

func (s *memoryStore) CreditCards(context.Context) ([]record.CreditCard, error) {
	return s.cards, nil
}

func (s *memoryStore) RecordUsed(id string) {
	fmt.Printf("store: record %s used\n", id)
}

func (s *memoryStore) RecordUpdated(r record.Record) {
	if card, ok := r.(record.CreditCard); ok {
		for i := range s.cards {
			if s.cards[i].ID == card.ID {
				s.cards[i] = card
			}
		}
	}
}
