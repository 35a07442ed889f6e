package orchestrator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"emr_etl/internal/config"
	"emr_etl/internal/storage"
)

// Plan is everything one chained run needs. It is built once by the caller
// and not modified by the orchestrator.
type Plan struct {
	ClusterID string `validate:"required"`
	// StepCount is the number of transformations the caller declared; it
	// must equal len(Steps).
	StepCount       int      `validate:"gte=1"`
	Steps           []string `validate:"required,dive,required"`
	InitialInput    string   `validate:"required,location"`
	ScriptsPath     string   `validate:"required"`
	TempOutputPath  string   `validate:"required"`
	FinalOutputPath string   `validate:"required,location"`
	RunPrefix       string
	// Scripts maps a step to the location of its staged script. When set it
	// must name every step; otherwise scripts are looked up by convention
	// under ScriptsPath.
	Scripts map[string]string `validate:"omitempty,dive,location"`
}

// PlanFromConfig fills the path templates of a plan from cfg.
func PlanFromConfig(cfg *config.PipelineConfig, clusterID, initialInput string, steps []string, stepCount int) Plan {
	return Plan{
		ClusterID:       clusterID,
		StepCount:       stepCount,
		Steps:           steps,
		InitialInput:    initialInput,
		ScriptsPath:     cfg.ScriptsPath(),
		TempOutputPath:  cfg.TempOutputPath(),
		FinalOutputPath: cfg.FinalOutputPath(),
		RunPrefix:       cfg.RunPrefix(),
	}
}

// OutputLocation is the output of step i (0-indexed). The last step writes
// to the final output path; every other step writes to a temporary prefix
// named after the run prefix and the step.
func (p Plan) OutputLocation(i int) string {
	if i == len(p.Steps)-1 {
		return p.FinalOutputPath
	}
	return p.TempOutputPath + p.RunPrefix + p.Steps[i] + "_output/"
}

// ScriptLocation is where the staged script of step i is referenced from.
func (p Plan) ScriptLocation(i int) string {
	if loc, ok := p.Scripts[p.Steps[i]]; ok {
		return loc
	}
	return p.ScriptsPath + p.Steps[i] + ".py"
}

func (p Plan) Validate() error {
	if p.StepCount != len(p.Steps) {
		return NewErrStepCountMismatch(p.StepCount, len(p.Steps))
	}
	if err := planValidator.Struct(p); err != nil {
		return NewErrInvalidPlan(err)
	}
	if len(p.Scripts) > 0 {
		for _, name := range p.Steps {
			if _, ok := p.Scripts[name]; !ok {
				return NewErrInvalidPlan(fmt.Errorf("no staged script for step %s", name))
			}
		}
	}
	return nil
}

var planValidator = newPlanValidator()

func newPlanValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("location", func(fl validator.FieldLevel) bool {
		return storage.ParseLocation(fl.Field().String()).Bucket != ""
	})
	return v
}
