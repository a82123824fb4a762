package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Aman-CERP/varannot/internal/variant"
)

// Calculator computes the baseline biological annotation for one variant.
// It is an external capability; the pipeline only orchestrates around it.
type Calculator interface {
	Calculate(ctx context.Context, v variant.Variant) (variant.Annotation, error)
}

// calculatorAnnotator adapts a Calculator to the Annotator chain. It always
// sits at position 0: the baseline it establishes is what later annotators
// merge into.
type calculatorAnnotator struct {
	calc Calculator
}

// NewCalculatorAnnotator wraps the core calculator as the first chain link.
func NewCalculatorAnnotator(calc Calculator) Annotator {
	return &calculatorAnnotator{calc: calc}
}

func (a *calculatorAnnotator) Name() string { return "calculator" }

func (a *calculatorAnnotator) Annotate(ctx context.Context, v *variant.Variant) error {
	baseline, err := a.calc.Calculate(ctx, *v)
	if err != nil {
		return err
	}
	ann := v.EnsureAnnotation()
	ann.ID = baseline.ID
	ann.DisplayConsequenceType = baseline.DisplayConsequenceType
	ann.ConsequenceTypes = baseline.ConsequenceTypes
	ann.PopulationFrequencies = append(ann.PopulationFrequencies, baseline.PopulationFrequencies...)
	return nil
}

// RemoteCalculator queries an annotation calculator web service: one POST
// per variant batch of one, JSON in and out.
type RemoteCalculator struct {
	url    string
	client *http.Client
}

// NewRemoteCalculator points at a calculator service endpoint.
func NewRemoteCalculator(url string) *RemoteCalculator {
	return &RemoteCalculator{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Calculate implements Calculator against the remote service.
func (c *RemoteCalculator) Calculate(ctx context.Context, v variant.Variant) (variant.Annotation, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return variant.Annotation{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return variant.Annotation{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return variant.Annotation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return variant.Annotation{}, fmt.Errorf("calculator returned %s for %s", resp.Status, v.String())
	}
	var ann variant.Annotation
	if err := json.NewDecoder(resp.Body).Decode(&ann); err != nil {
		return variant.Annotation{}, fmt.Errorf("decoding calculator response for %s: %w", v.String(), err)
	}
	return ann, nil
}

// BaselineCalculator is the in-process fallback calculator: it derives the
// annotation ID and display consequence from the variant itself and nothing
// else. Used when no calculator service is configured.
type BaselineCalculator struct{}

// Calculate implements Calculator.
func (BaselineCalculator) Calculate(_ context.Context, v variant.Variant) (variant.Annotation, error) {
	t := v.Type
	if t == "" {
		t = v.InferType()
	}
	return variant.Annotation{
		ID:                     v.ID,
		DisplayConsequenceType: string(t),
	}, nil
}
