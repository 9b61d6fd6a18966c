package scenario

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"energia/pkg/apperror"
)

// validate singleton-валидатор
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Пути ошибок в терминах JSON/YAML-полей сценария
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Validate проверяет описания сценария: теги полей и согласованность уровней
// шкалы. Ссылочная целостность проверяется при сборке топологии.
func Validate(s *Scenario) error {
	if s == nil {
		return apperror.ErrNilScenario
	}

	verrs := apperror.NewValidationErrors()

	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return apperror.Wrap(err, apperror.CodeInvalidScenario, "scenario validation failed")
		}
		for _, fe := range fieldErrs {
			verrs.Add(formatFieldError(fe))
		}
	}

	depth := len(s.Fanout)
	checkLevel := func(name string, level int) {
		if level < 0 || level >= depth {
			verrs.AddErrorWithField(apperror.CodeInvalidScaleLevel,
				fmt.Sprintf("level %d outside hierarchy with %d levels", level, depth), "levels."+name)
		}
	}
	checkLevel("network", s.Levels.Network)
	checkLevel("scheduling", s.Levels.Scheduling)
	checkLevel("demand", s.Levels.Demand)
	checkLevel("uncertainty", s.Levels.Uncertainty)

	if s.Levels.Network > s.Levels.Scheduling {
		verrs.AddErrorWithField(apperror.CodeInvalidScaleLevel,
			"network level must not be finer than scheduling level", "levels.network")
	}
	if s.Levels.Demand > s.Levels.Scheduling {
		verrs.AddErrorWithField(apperror.CodeInvalidScaleLevel,
			"demand level must not be finer than scheduling level", "levels.demand")
	}
	if s.Levels.Uncertainty > s.Levels.Demand {
		verrs.AddErrorWithField(apperror.CodeInvalidScaleLevel,
			"uncertainty level must not be finer than demand level", "levels.uncertainty")
	}

	switch s.ObjectiveOrDefault() {
	case ObjectiveDischargeMin, ObjectiveDischargeMax:
		if s.ObjectiveResource == "" {
			verrs.AddErrorWithField(apperror.CodeInvalidObjective,
				"discharge objectives need objective_resource", "objective_resource")
		}
	case ObjectiveUncertaintyCost:
		if s.Penalty <= 0 {
			verrs.AddErrorWithField(apperror.CodeInvalidObjective,
				"uncertainty_cost needs a positive penalty", "penalty")
		}
	}

	for i, p := range s.Processes {
		if len(p.Modes) > 0 && len(p.Conversion) > 0 {
			verrs.AddErrorWithField(apperror.CodeInvalidScenario,
				"process declares both conversion and modes", fmt.Sprintf("processes[%d]", i))
		}
	}

	return verrs.ErrOrNil()
}

func formatFieldError(fe validator.FieldError) *apperror.Error {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "field is required"
	case "min":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		msg = fmt.Sprintf("must not exceed %s", fe.Param())
	case "gte":
		msg = fmt.Sprintf("must be >= %s", fe.Param())
	case "lt":
		msg = fmt.Sprintf("must be < %s", fe.Param())
	case "ltefield":
		msg = fmt.Sprintf("must not exceed %s", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		msg = fmt.Sprintf("validation failed (%s)", fe.Tag())
	}

	code := apperror.CodeInvalidScenario
	if strings.HasPrefix(field, "fanout") {
		code = apperror.CodeInvalidDiscretization
	}
	return apperror.NewWithField(code, msg, field)
}
