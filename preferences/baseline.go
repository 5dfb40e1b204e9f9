package preferences

// BaselineGeneral returns the built-in general settings. Every field is set.
func BaselineGeneral() General {
	return General{
		ChangesPerPage:            Ptr(25),
		Theme:                     Ptr(ThemeAuto),
		FontSize:                  Ptr(13),
		DateFormat:                Ptr("STD"),
		TimeFormat:                Ptr("HHMM_12"),
		ExpandInlineDiffs:         Ptr(false),
		RelativeDateInChangeTable: Ptr(false),
		DiffView:                  Ptr(DiffViewSideBySide),
		SizeBarInChangeTable:      Ptr(true),
		MuteCommonPathPrefixes:    Ptr(true),
		SignedOffBy:               Ptr(false),
		EmailStrategy:             Ptr(EmailStrategyEnabled),
		EmailFormat:               Ptr(EmailFormatHTMLPlaintext),
		DefaultBaseForMerges:      Ptr(DefaultBaseFirstParent),
		PublishCommentsOnPush:     Ptr(false),
		WorkInProgressByDefault:   Ptr(false),
		DisableKeyboardShortcuts:  Ptr(false),
		My:                        defaultMenu(),
		ChangeTable:               []string{},
	}
}

func defaultMenu() []MenuItem {
	return []MenuItem{
		{Name: "Changes", URL: "#/dashboard/self"},
		{Name: "Draft Comments", URL: "#/q/has:draft"},
		{Name: "Edits", URL: "#/q/has:edit"},
		{Name: "Watched Changes", URL: "#/q/is:watched+is:open"},
		{Name: "Starred Changes", URL: "#/q/is:starred"},
		{Name: "Groups", URL: "#/settings/#Groups"},
	}
}

// BaselineDiff returns the built-in diff settings. Every field is set.
func BaselineDiff() Diff {
	return Diff{
		Context:                 Ptr(10),
		TabSize:                 Ptr(8),
		FontSize:                Ptr(12),
		LineLength:              Ptr(100),
		CursorBlinkRate:         Ptr(0),
		IgnoreWhitespace:        Ptr(IgnoreWhitespaceNone),
		ExpandAllComments:       Ptr(false),
		IntralineDifference:     Ptr(true),
		ManualReview:            Ptr(false),
		ShowLineEndings:         Ptr(true),
		ShowTabs:                Ptr(true),
		ShowWhitespaceErrors:    Ptr(true),
		SyntaxHighlighting:      Ptr(true),
		HideTopMenu:             Ptr(false),
		AutoHideDiffTableHeader: Ptr(true),
		HideLineNumbers:         Ptr(false),
		RenderEntireFile:        Ptr(false),
		HideEmptyPane:           Ptr(false),
		MatchBrackets:           Ptr(false),
		LineWrapping:            Ptr(false),
		SkipDeleted:             Ptr(false),
		SkipUnchanged:           Ptr(false),
		SkipUncommented:         Ptr(false),
	}
}

// BaselineEdit returns the built-in edit settings. Every field is set.
func BaselineEdit() Edit {
	return Edit{
		TabSize:              Ptr(8),
		LineLength:           Ptr(100),
		IndentUnit:           Ptr(2),
		CursorBlinkRate:      Ptr(0),
		HideTopMenu:          Ptr(false),
		ShowTabs:             Ptr(true),
		ShowWhitespaceErrors: Ptr(false),
		SyntaxHighlighting:   Ptr(true),
		HideLineNumbers:      Ptr(false),
		MatchBrackets:        Ptr(true),
		LineWrapping:         Ptr(false),
		IndentWithTabs:       Ptr(false),
		AutoCloseBrackets:    Ptr(false),
		ShowBase:             Ptr(false),
	}
}

// Baseline returns the built-in settings of c.
func Baseline(c Category) (Settings, error) {
	switch c {
	case CategoryGeneral:
		return BaselineGeneral(), nil
	case CategoryDiff:
		return BaselineDiff(), nil
	case CategoryEdit:
		return BaselineEdit(), nil
	default:
		return nil, c.Validate()
	}
}

// BaselineDocument returns a default document with every field of every
// category set to its built-in value.
func BaselineDocument() Document {
	doc := NewDefaultDocument()
	doc.General = BaselineGeneral()
	doc.Diff = BaselineDiff()
	doc.Edit = BaselineEdit()
	return doc
}
