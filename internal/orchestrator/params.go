package orchestrator

// Per-tool parameter structs. Each embeds CommonParams for the
// workspace/max_tokens/response_mode/no_cache fields every tool shares
// (spec §6: "parameter object (workspace path, query-specific arguments,
// max_tokens?, response_mode?, no_cache?)").

type IndexWorkspaceParams struct {
	CommonParams
	Force bool `json:"force,omitempty" jsonschema:"clear the text index before crawling; every crawl re-indexes every eligible file either way"`
}

type TextSearchParams struct {
	CommonParams
	Query         string `json:"query" jsonschema:"the search query to execute"`
	Mode          string `json:"mode,omitempty" jsonschema:"auto (default), standard, symbol, pattern, or fuzzy"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

type FileSearchParams struct {
	CommonParams
	Pattern            string   `json:"pattern" jsonschema:"glob (*, ?) or regex pattern to match file paths"`
	UseRegex           bool     `json:"use_regex,omitempty" jsonschema:"treat pattern as a regular expression instead of a glob"`
	SearchFullPath     bool     `json:"search_full_path,omitempty" jsonschema:"match against the full path instead of just the basename"`
	ExtensionFilter    []string `json:"extension_filter,omitempty" jsonschema:"restrict matches to these file extensions, e.g. [\".go\", \".ts\"]"`
	IncludeDirectories bool     `json:"include_directories,omitempty" jsonschema:"collapse matches to their unique parent directories"`
	Limit              int      `json:"limit,omitempty"`
}

type DirectorySearchParams struct {
	CommonParams
	Pattern       string `json:"pattern" jsonschema:"glob pattern matched against each path segment"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type RecentFilesParams struct {
	CommonParams
	TimeFrame       string   `json:"time_frame" jsonschema:"window syntax N{min|h|d|w}, e.g. \"1d\" or \"30min\""`
	ExtensionFilter []string `json:"extension_filter,omitempty"`
	Limit           int      `json:"limit,omitempty"`
}

type SymbolSearchParams struct {
	CommonParams
	Name          string `json:"name" jsonschema:"symbol name, exact or with * / ? wildcards"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	Kind          string `json:"kind,omitempty" jsonschema:"restrict to a symbol kind, e.g. function, class, interface"`
	Limit         int    `json:"limit,omitempty"`
}

type GotoDefinitionParams struct {
	CommonParams
	Name          string `json:"name" jsonschema:"symbol name to resolve"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

type FindReferencesParams struct {
	CommonParams
	Name          string `json:"name" jsonschema:"symbol name to find references of"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	GroupByFile   bool   `json:"group_by_file,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type TraceCallPathParams struct {
	CommonParams
	Name      string `json:"name" jsonschema:"symbol name to trace calls for"`
	Direction string `json:"direction,omitempty" jsonschema:"callers, callees, or both (default)"`
	MaxDepth  int    `json:"max_depth,omitempty" jsonschema:"maximum hop count per direction; default 3"`
}

type SimilarFilesParams struct {
	CommonParams
	Path     string  `json:"path" jsonschema:"path of the source file, relative or absolute"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"drop results scoring below this threshold; default 0.2"`
	Limit    int     `json:"limit,omitempty"`
}

type SearchAndReplaceParams struct {
	CommonParams
	Pattern  string `json:"pattern" jsonschema:"literal text or regex to find"`
	Replace  string `json:"replace" jsonschema:"replacement text"`
	UseRegex bool   `json:"use_regex,omitempty"`
	Preview  bool   `json:"preview" jsonschema:"when true, compute changes without writing any file; when false or omitted, changes are written"`
	FileGlob string `json:"file_glob,omitempty" jsonschema:"restrict to files whose path matches this glob"`
}

type SmartRefactorParams struct {
	CommonParams
	SymbolName string `json:"symbol_name" jsonschema:"symbol to rename"`
	NewName    string `json:"new_name" jsonschema:"replacement identifier"`
	Preview    bool   `json:"preview" jsonschema:"when true, compute changes without writing any file; when false or omitted, changes are written"`
}
