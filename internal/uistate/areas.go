package uistate

import "fmt"

var (
	navigationTabs    = []string{"dashboard", "classes", "calendar", "grades", "people", "settings"}
	navigationDialogs = []string{"create_class", "invite_user", "profile", "sign_out"}

	schoolSettingsTabs    = []string{"general", "branding", "admins", "year_batches"}
	schoolSettingsDialogs = []string{"upload_logo", "add_admin", "remove_admin", "discard_changes"}
	schoolSettingsFields  = []string{"name", "accent_color", "contact_email", "contact_phone", "address", "website"}

	yearBatchDialogs = []string{"create", "edit", "delete"}

	courseViewTabs    = []string{"stream", "classwork", "people", "grades", "files"}
	courseViewDialogs = []string{"create_assignment", "create_post", "upload_file", "create_folder", "add_students"}
)

// NavigationState is the dashboard shell: current tab, active class and open dialogs.
type NavigationState struct {
	Tab              string  `json:"tab"`
	ActiveClassID    string  `json:"active_class_id,omitempty"`
	SelectedEntityID string  `json:"selected_entity_id,omitempty"`
	Dialogs          Dialogs `json:"dialogs"`
}

// NewNavigationState returns the default navigation state.
func NewNavigationState() NavigationState {
	return NavigationState{Tab: "dashboard", Dialogs: Dialogs{}}
}

// Area implements State.
func (NavigationState) Area() Area { return AreaNavigation }

func (s NavigationState) normalise() NavigationState {
	if s.Tab == "" {
		s.Tab = "dashboard"
	}
	if s.Dialogs == nil {
		s.Dialogs = Dialogs{}
	}
	return s
}

// Reduce applies an action.
func (s NavigationState) Reduce(action Action) (State, error) {
	next := s.normalise()
	switch action.Type {
	case ActionSetTab:
		if !oneOf(action.Tab, navigationTabs) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTab, action.Tab)
		}
		next.Tab = action.Tab
		next.SelectedEntityID = ""
	case ActionSelectClass:
		next.ActiveClassID = action.ClassID
		if action.ClassID != "" {
			next.Tab = "classes"
		}
	case ActionSelectEntity:
		next.SelectedEntityID = action.EntityID
	case ActionOpenDialog, ActionCloseDialog:
		dialogs, err := toggleDialog(next.Dialogs, action, navigationDialogs)
		if err != nil {
			return nil, err
		}
		next.Dialogs = dialogs
	case ActionReset:
		return NewNavigationState(), nil
	default:
		return nil, unsupported(AreaNavigation, action)
	}
	return next, nil
}

// SchoolSettingsState is the admin settings screen with an unsaved draft.
type SchoolSettingsState struct {
	Tab     string            `json:"tab"`
	Dialogs Dialogs           `json:"dialogs"`
	Draft   map[string]string `json:"draft"`
	Dirty   bool              `json:"dirty"`
}

// NewSchoolSettingsState returns the default settings state.
func NewSchoolSettingsState() SchoolSettingsState {
	return SchoolSettingsState{Tab: "general", Dialogs: Dialogs{}, Draft: map[string]string{}}
}

// Area implements State.
func (SchoolSettingsState) Area() Area { return AreaSchoolSettings }

func (s SchoolSettingsState) normalise() SchoolSettingsState {
	if s.Tab == "" {
		s.Tab = "general"
	}
	if s.Dialogs == nil {
		s.Dialogs = Dialogs{}
	}
	if s.Draft == nil {
		s.Draft = map[string]string{}
	}
	return s
}

// Reduce applies an action. Switching tabs keeps the draft.
func (s SchoolSettingsState) Reduce(action Action) (State, error) {
	next := s.normalise()
	switch action.Type {
	case ActionSetTab:
		if !oneOf(action.Tab, schoolSettingsTabs) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTab, action.Tab)
		}
		next.Tab = action.Tab
	case ActionOpenDialog, ActionCloseDialog:
		dialogs, err := toggleDialog(next.Dialogs, action, schoolSettingsDialogs)
		if err != nil {
			return nil, err
		}
		next.Dialogs = dialogs
	case ActionSetField:
		if !oneOf(action.Field, schoolSettingsFields) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, action.Field)
		}
		draft := make(map[string]string, len(next.Draft)+1)
		for k, v := range next.Draft {
			draft[k] = v
		}
		draft[action.Field] = action.Value
		next.Draft = draft
		next.Dirty = true
	case ActionReset:
		return NewSchoolSettingsState(), nil
	default:
		return nil, unsupported(AreaSchoolSettings, action)
	}
	return next, nil
}

// YearBatchAdminState tracks the selected batch and the create/edit/delete dialogs.
type YearBatchAdminState struct {
	SelectedBatchID string  `json:"selected_batch_id,omitempty"`
	Dialogs         Dialogs `json:"dialogs"`
}

// NewYearBatchAdminState returns the default year batch admin state.
func NewYearBatchAdminState() YearBatchAdminState {
	return YearBatchAdminState{Dialogs: Dialogs{}}
}

// Area implements State.
func (YearBatchAdminState) Area() Area { return AreaYearBatchAdmin }

func (s YearBatchAdminState) normalise() YearBatchAdminState {
	if s.Dialogs == nil {
		s.Dialogs = Dialogs{}
	}
	return s
}

// Reduce applies an action. Edit and delete dialogs need a selected batch.
func (s YearBatchAdminState) Reduce(action Action) (State, error) {
	next := s.normalise()
	switch action.Type {
	case ActionSelectEntity:
		next.SelectedBatchID = action.EntityID
	case ActionOpenDialog, ActionCloseDialog:
		if action.Type == ActionOpenDialog && action.Dialog != "create" {
			if action.EntityID != "" {
				next.SelectedBatchID = action.EntityID
			}
			if next.SelectedBatchID == "" {
				return nil, fmt.Errorf("%w: %s dialog needs a selected batch", ErrMissingActionValue, action.Dialog)
			}
		}
		dialogs, err := toggleDialog(next.Dialogs, action, yearBatchDialogs)
		if err != nil {
			return nil, err
		}
		next.Dialogs = dialogs
	case ActionReset:
		return NewYearBatchAdminState(), nil
	default:
		return nil, unsupported(AreaYearBatchAdmin, action)
	}
	return next, nil
}

// CourseViewState is one class page: which class and which tab.
type CourseViewState struct {
	ClassID          string  `json:"class_id,omitempty"`
	Tab              string  `json:"tab"`
	SelectedEntityID string  `json:"selected_entity_id,omitempty"`
	Dialogs          Dialogs `json:"dialogs"`
}

// NewCourseViewState returns the default course view state.
func NewCourseViewState() CourseViewState {
	return CourseViewState{Tab: "stream", Dialogs: Dialogs{}}
}

// Area implements State.
func (CourseViewState) Area() Area { return AreaCourseView }

func (s CourseViewState) normalise() CourseViewState {
	if s.Tab == "" {
		s.Tab = "stream"
	}
	if s.Dialogs == nil {
		s.Dialogs = Dialogs{}
	}
	return s
}

// Reduce applies an action. Selecting another class starts again on the stream tab.
func (s CourseViewState) Reduce(action Action) (State, error) {
	next := s.normalise()
	switch action.Type {
	case ActionSelectClass:
		if action.ClassID == "" {
			return nil, fmt.Errorf("%w: class_id", ErrMissingActionValue)
		}
		if action.ClassID != next.ClassID {
			next = NewCourseViewState()
			next.ClassID = action.ClassID
		}
	case ActionSetTab:
		if !oneOf(action.Tab, courseViewTabs) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTab, action.Tab)
		}
		next.Tab = action.Tab
		next.SelectedEntityID = ""
	case ActionSelectEntity:
		next.SelectedEntityID = action.EntityID
	case ActionOpenDialog, ActionCloseDialog:
		dialogs, err := toggleDialog(next.Dialogs, action, courseViewDialogs)
		if err != nil {
			return nil, err
		}
		next.Dialogs = dialogs
	case ActionReset:
		return NewCourseViewState(), nil
	default:
		return nil, unsupported(AreaCourseView, action)
	}
	return next, nil
}
