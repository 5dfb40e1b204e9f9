package preferences

import "github.com/goliatone/go-accountstate/layering"

// StackFor builds the layer stack of a category: the built-in baseline, the
// default document and the user document when present.
func StackFor[T Settings](baseline T, section func(Document) T, defaults, user *Document) *Stack[T] {
	layers := make([]Layer[T], 0, 3)
	layers = append(layers, NewLayer(layering.Source{Level: layering.LevelBaseline}, "", baseline))
	if defaults != nil {
		layers = append(layers, NewLayer(layering.Source{Level: layering.LevelDefault}, defaults.Revision, section(*defaults)))
	}
	if user != nil {
		src := layering.Source{Level: layering.LevelUser, Owner: user.AccountID.String()}
		layers = append(layers, NewLayer(src, user.Revision, section(*user)))
	}
	// Levels are distinct by construction.
	stack, _ := NewStack(layers...)
	return stack
}

func generalOf(d Document) General { return d.General }
func diffOf(d Document) Diff       { return d.Diff }
func editOf(d Document) Edit       { return d.Edit }

// ResolveGeneral layers baseline, defaults and user general settings. Nil
// documents are skipped.
func ResolveGeneral(defaults, user *Document) General {
	return StackFor(BaselineGeneral(), generalOf, defaults, user).Merge()
}

// ResolveDiff layers baseline, defaults and user diff settings.
func ResolveDiff(defaults, user *Document) Diff {
	return StackFor(BaselineDiff(), diffOf, defaults, user).Merge()
}

// ResolveEdit layers baseline, defaults and user edit settings.
func ResolveEdit(defaults, user *Document) Edit {
	return StackFor(BaselineEdit(), editOf, defaults, user).Merge()
}

// Resolve returns the effective settings of category c.
func Resolve(c Category, defaults, user *Document) (Settings, error) {
	switch c {
	case CategoryGeneral:
		return ResolveGeneral(defaults, user), nil
	case CategoryDiff:
		return ResolveDiff(defaults, user), nil
	case CategoryEdit:
		return ResolveEdit(defaults, user), nil
	default:
		return nil, c.Validate()
	}
}
