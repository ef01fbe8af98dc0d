package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/michaelbrown/codetutor/internal/credential"
	"github.com/michaelbrown/codetutor/internal/tutor"
	"github.com/michaelbrown/codetutor/internal/tutorial"
)

func (d *Dispatcher) getTutorials() (map[string]any, error) {
	return map[string]any{"tutorials": d.content.List()}, nil
}

func (d *Dispatcher) getTutorial(payload map[string]any) (map[string]any, error) {
	key := str(payload, "tutorialKey")
	tut, err := d.content.Tutorial(key)
	if err != nil {
		if errors.Is(err, tutorial.ErrNotFound) || key == "" {
			return nil, fmt.Errorf("Tutorial '%s' not found", key)
		}
		return nil, err
	}
	return map[string]any{"title": tut.Title, "sections": tut.Sections}, nil
}

func (d *Dispatcher) runCode(ctx context.Context, payload map[string]any) (map[string]any, error) {
	code := str(payload, "code")
	expected := str(payload, "expected_code")
	if code == "" {
		return nil, errors.New("No code provided")
	}

	result := d.runner.Execute(ctx, code)

	// evaluated only when there is a reference and the learner's code ran
	var evaluation any
	if expected != "" && result.Success {
		verdict, err := d.evaluator.Evaluate(ctx, tutor.Submission{
			Reference:     expected,
			Learner:       code,
			LearnerOutput: result.Output,
			LearnerRun:    &result,
		})
		if err != nil {
			evaluation = map[string]any{"error": err.Error()}
		} else {
			evaluation = verdict
		}
	}

	return map[string]any{
		"success":       result.Success,
		"output":        result.Output,
		"ai_evaluation": evaluation,
	}, nil
}

func (d *Dispatcher) getHint(ctx context.Context, payload map[string]any) (map[string]any, error) {
	req := tutor.HintRequest{
		Code:         str(payload, "code"),
		Expected:     str(payload, "expected_code"),
		ActualOutput: str(payload, "actual_output"),
	}
	if req.Code == "" || req.Expected == "" {
		return nil, ErrMissingParams
	}

	hint, err := d.evaluator.Hint(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Error getting hint: %w", err)
	}
	return map[string]any{"hint": hint}, nil
}

func (d *Dispatcher) getSolution(ctx context.Context, payload map[string]any) (map[string]any, error) {
	req := tutor.HintRequest{
		Code:         str(payload, "code"),
		Expected:     str(payload, "expected_code"),
		ActualOutput: str(payload, "actual_output"),
	}
	if req.Expected == "" {
		return nil, ErrMissingParams
	}

	solution, err := d.evaluator.Solution(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Error getting solution: %w", err)
	}
	return map[string]any{"solution": solution}, nil
}

// modelKeyResult is the body of every successful model_key reply.
type modelKeyResult struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Models  []credential.Credential `json:"models,omitempty"`
}

func (d *Dispatcher) modelKey(ctx context.Context, payload map[string]any) (map[string]any, error) {
	operate := str(payload, "operate")
	if operate == "" {
		return nil, ErrMissingParams
	}

	var (
		res modelKeyResult
		err error
	)
	switch operate {
	case "get":
		res, err = d.listModels(ctx)
	case "push":
		res, err = d.pushModel(ctx, payload)
	case "delete":
		res, err = d.deleteModel(ctx, payload)
	default:
		err = fmt.Errorf("unsupported operation %q", operate)
	}
	if err != nil {
		if errors.Is(err, ErrMissingParams) {
			return nil, err
		}
		return nil, fmt.Errorf("Error %s model key: %w", operate, err)
	}
	return map[string]any{"model_key": res}, nil
}

func (d *Dispatcher) listModels(ctx context.Context) (modelKeyResult, error) {
	creds, err := d.creds.Get(ctx)
	if err != nil {
		return modelKeyResult{}, err
	}
	models := make([]credential.Credential, len(creds))
	for i, c := range creds {
		models[i] = c.Masked()
	}
	return modelKeyResult{
		Success: true,
		Message: fmt.Sprintf("%d model(s) configured", len(models)),
		Models:  models,
	}, nil
}

func (d *Dispatcher) pushModel(ctx context.Context, payload map[string]any) (modelKeyResult, error) {
	name := str(payload, "model_name")
	if name == "" {
		return modelKeyResult{}, ErrMissingParams
	}

	key := str(payload, "model_key")
	if enc := str(payload, "encrypted_api_key"); enc != "" {
		plain, err := credential.DecryptKey(enc, str(payload, "aes_key"), str(payload, "iv"))
		if err != nil {
			return modelKeyResult{}, fmt.Errorf("decrypting api key: %w", err)
		}
		key = plain
	}
	if key == "" {
		return modelKeyResult{}, ErrMissingParams
	}

	err := d.creds.Upsert(ctx, credential.Credential{
		ModelName: name,
		BaseURL:   str(payload, "base_url"),
		APIKey:    key,
	})
	if err != nil {
		return modelKeyResult{}, err
	}
	return modelKeyResult{Success: true, Message: "Model key saved: " + name}, nil
}

func (d *Dispatcher) deleteModel(ctx context.Context, payload map[string]any) (modelKeyResult, error) {
	name := str(payload, "model_name")
	if name == "" {
		return modelKeyResult{}, ErrMissingParams
	}
	if err := d.creds.Delete(ctx, name); err != nil {
		return modelKeyResult{}, err
	}
	return modelKeyResult{Success: true, Message: "Model key removed: " + name}, nil
}
