package preferences

// Values accepted by the enumerated general fields.
const (
	ThemeAuto  = "AUTO_DETECT"
	ThemeDark  = "DARK"
	ThemeLight = "LIGHT"

	DiffViewSideBySide = "SIDE_BY_SIDE"
	DiffViewUnified    = "UNIFIED_DIFF"

	EmailStrategyEnabled            = "ENABLED"
	EmailStrategyCCOnOwnComments    = "CC_ON_OWN_COMMENTS"
	EmailStrategyAttentionSetOnly   = "ATTENTION_SET_ONLY"
	EmailStrategyDisabled           = "DISABLED"
	EmailFormatPlaintext            = "PLAINTEXT"
	EmailFormatHTMLPlaintext        = "HTML_PLAINTEXT"
	DefaultBaseAutoMerge            = "AUTO_MERGE"
	DefaultBaseFirstParent          = "FIRST_PARENT"
	IgnoreWhitespaceNone            = "IGNORE_NONE"
	IgnoreWhitespaceTrailing        = "IGNORE_TRAILING"
	IgnoreWhitespaceLeadingTrailing = "IGNORE_LEADING_AND_TRAILING"
	IgnoreWhitespaceAll             = "IGNORE_ALL"
)

// MenuItem is an entry of the user's "My" menu.
type MenuItem struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Target string `json:"target,omitempty"`
	ID     string `json:"id,omitempty"`
}

// General holds general display and behaviour preferences. A nil field is
// absent from the document; lists are present whenever non-nil, including
// when empty.
type General struct {
	ChangesPerPage            *int       `json:"changes_per_page,omitempty"`
	Theme                     *string    `json:"theme,omitempty"`
	FontSize                  *int       `json:"font_size,omitempty"`
	DateFormat                *string    `json:"date_format,omitempty"`
	TimeFormat                *string    `json:"time_format,omitempty"`
	ExpandInlineDiffs         *bool      `json:"expand_inline_diffs,omitempty"`
	RelativeDateInChangeTable *bool      `json:"relative_date_in_change_table,omitempty"`
	DiffView                  *string    `json:"diff_view,omitempty"`
	SizeBarInChangeTable      *bool      `json:"size_bar_in_change_table,omitempty"`
	MuteCommonPathPrefixes    *bool      `json:"mute_common_path_prefixes,omitempty"`
	SignedOffBy               *bool      `json:"signed_off_by,omitempty"`
	EmailStrategy             *string    `json:"email_strategy,omitempty"`
	EmailFormat               *string    `json:"email_format,omitempty"`
	DefaultBaseForMerges      *string    `json:"default_base_for_merges,omitempty"`
	PublishCommentsOnPush     *bool      `json:"publish_comments_on_push,omitempty"`
	WorkInProgressByDefault   *bool      `json:"work_in_progress_by_default,omitempty"`
	DisableKeyboardShortcuts  *bool      `json:"disable_keyboard_shortcuts,omitempty"`
	My                        []MenuItem `json:"my"`
	ChangeTable               []string   `json:"change_table"`
}

// Category implements Settings.
func (General) Category() Category { return CategoryGeneral }

// Diff holds diff viewer preferences.
type Diff struct {
	Context                 *int    `json:"context,omitempty"`
	TabSize                 *int    `json:"tab_size,omitempty"`
	FontSize                *int    `json:"font_size,omitempty"`
	LineLength              *int    `json:"line_length,omitempty"`
	CursorBlinkRate         *int    `json:"cursor_blink_rate,omitempty"`
	IgnoreWhitespace        *string `json:"ignore_whitespace,omitempty"`
	ExpandAllComments       *bool   `json:"expand_all_comments,omitempty"`
	IntralineDifference     *bool   `json:"intraline_difference,omitempty"`
	ManualReview            *bool   `json:"manual_review,omitempty"`
	ShowLineEndings         *bool   `json:"show_line_endings,omitempty"`
	ShowTabs                *bool   `json:"show_tabs,omitempty"`
	ShowWhitespaceErrors    *bool   `json:"show_whitespace_errors,omitempty"`
	SyntaxHighlighting      *bool   `json:"syntax_highlighting,omitempty"`
	HideTopMenu             *bool   `json:"hide_top_menu,omitempty"`
	AutoHideDiffTableHeader *bool   `json:"auto_hide_diff_table_header,omitempty"`
	HideLineNumbers         *bool   `json:"hide_line_numbers,omitempty"`
	RenderEntireFile        *bool   `json:"render_entire_file,omitempty"`
	HideEmptyPane           *bool   `json:"hide_empty_pane,omitempty"`
	MatchBrackets           *bool   `json:"match_brackets,omitempty"`
	LineWrapping            *bool   `json:"line_wrapping,omitempty"`
	SkipDeleted             *bool   `json:"skip_deleted,omitempty"`
	SkipUnchanged           *bool   `json:"skip_unchanged,omitempty"`
	SkipUncommented         *bool   `json:"skip_uncommented,omitempty"`
}

// Category implements Settings.
func (Diff) Category() Category { return CategoryDiff }

// Edit holds inline editor preferences.
type Edit struct {
	TabSize              *int  `json:"tab_size,omitempty"`
	LineLength           *int  `json:"line_length,omitempty"`
	IndentUnit           *int  `json:"indent_unit,omitempty"`
	CursorBlinkRate      *int  `json:"cursor_blink_rate,omitempty"`
	HideTopMenu          *bool `json:"hide_top_menu,omitempty"`
	ShowTabs             *bool `json:"show_tabs,omitempty"`
	ShowWhitespaceErrors *bool `json:"show_whitespace_errors,omitempty"`
	SyntaxHighlighting   *bool `json:"syntax_highlighting,omitempty"`
	HideLineNumbers      *bool `json:"hide_line_numbers,omitempty"`
	MatchBrackets        *bool `json:"match_brackets,omitempty"`
	LineWrapping         *bool `json:"line_wrapping,omitempty"`
	IndentWithTabs       *bool `json:"indent_with_tabs,omitempty"`
	AutoCloseBrackets    *bool `json:"auto_close_brackets,omitempty"`
	ShowBase             *bool `json:"show_base,omitempty"`
}

// Category implements Settings.
func (Edit) Category() Category { return CategoryEdit }
