// Package uistate holds the per-user view state of the dashboards as plain structs
// changed only through pure reducers.
package uistate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Area names one independent state container.
type Area string

const (
	AreaNavigation     Area = "navigation"
	AreaSchoolSettings Area = "school_settings"
	AreaYearBatchAdmin Area = "year_batch_admin"
	AreaCourseView     Area = "course_view"
)

// Areas lists every known area.
var Areas = []Area{AreaNavigation, AreaSchoolSettings, AreaYearBatchAdmin, AreaCourseView}

// ParseArea validates an area name.
func ParseArea(raw string) (Area, error) {
	for _, a := range Areas {
		if string(a) == raw {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownArea, raw)
}

// ActionType enumerates the state transitions.
type ActionType string

const (
	ActionSetTab       ActionType = "set_tab"
	ActionSelectClass  ActionType = "select_class"
	ActionSelectEntity ActionType = "select_entity"
	ActionOpenDialog   ActionType = "open_dialog"
	ActionCloseDialog  ActionType = "close_dialog"
	ActionSetField     ActionType = "set_field"
	ActionReset        ActionType = "reset"
)

// Action is one transition request. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType `json:"type" validate:"required"`
	Tab      string     `json:"tab,omitempty"`
	ClassID  string     `json:"class_id,omitempty"`
	EntityID string     `json:"entity_id,omitempty"`
	Dialog   string     `json:"dialog,omitempty"`
	Field    string     `json:"field,omitempty"`
	Value    string     `json:"value,omitempty"`
}

var (
	ErrUnknownArea        = errors.New("unknown ui state area")
	ErrUnsupportedAction  = errors.New("action not supported for area")
	ErrInvalidTab         = errors.New("invalid tab")
	ErrInvalidDialog      = errors.New("invalid dialog")
	ErrInvalidField       = errors.New("invalid field")
	ErrMissingActionValue = errors.New("action is missing its value")
)

// State is implemented by every area's state struct.
type State interface {
	Area() Area
}

// Initial returns the default state of an area.
func Initial(area Area) (State, error) {
	switch area {
	case AreaNavigation:
		return NewNavigationState(), nil
	case AreaSchoolSettings:
		return NewSchoolSettingsState(), nil
	case AreaYearBatchAdmin:
		return NewYearBatchAdminState(), nil
	case AreaCourseView:
		return NewCourseViewState(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArea, area)
	}
}

// Reduce applies action to state and returns the next state. The input is never modified.
func Reduce(state State, action Action) (State, error) {
	switch s := state.(type) {
	case NavigationState:
		return s.Reduce(action)
	case SchoolSettingsState:
		return s.Reduce(action)
	case YearBatchAdminState:
		return s.Reduce(action)
	case CourseViewState:
		return s.Reduce(action)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownArea, state)
	}
}

// Decode unmarshals a stored state of area.
func Decode(area Area, raw []byte) (State, error) {
	var (
		state State
		err   error
	)
	switch area {
	case AreaNavigation:
		var s NavigationState
		err = json.Unmarshal(raw, &s)
		state = s.normalise()
	case AreaSchoolSettings:
		var s SchoolSettingsState
		err = json.Unmarshal(raw, &s)
		state = s.normalise()
	case AreaYearBatchAdmin:
		var s YearBatchAdminState
		err = json.Unmarshal(raw, &s)
		state = s.normalise()
	case AreaCourseView:
		var s CourseViewState
		err = json.Unmarshal(raw, &s)
		state = s.normalise()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArea, area)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s state: %w", area, err)
	}
	return state, nil
}

// Dialogs tracks which dialogs are open.
type Dialogs map[string]bool

func (d Dialogs) with(name string, open bool) Dialogs {
	out := make(Dialogs, len(d)+1)
	for k, v := range d {
		if v {
			out[k] = v
		}
	}
	if open {
		out[name] = true
	} else {
		delete(out, name)
	}
	return out
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

func toggleDialog(d Dialogs, action Action, allowed []string) (Dialogs, error) {
	if !oneOf(action.Dialog, allowed) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDialog, action.Dialog)
	}
	return d.with(action.Dialog, action.Type == ActionOpenDialog), nil
}

func unsupported(area Area, action Action) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedAction, action.Type, area)
}
