package sphinx

// StageName is a strongly-typed identifier for a build stage. All canonical
// stages are declared as constants here for compile-time safety.
type StageName string

// Canonical stage names.
const (
	StagePrepareOutput    StageName = "prepare_output"
	StageFetchSource      StageName = "fetch_source"
	StageDiscoverInputs   StageName = "discover_inputs"
	StageRenderDoxyfile   StageName = "render_doxyfile"
	StageRunDoxygen       StageName = "run_doxygen"
	StageRegisterProjects StageName = "register_projects"
	StageWriteConf        StageName = "write_conf"
	StagePostProcess      StageName = "post_process"
)
