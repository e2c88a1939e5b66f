package prompt

// Registry maps section names to their Section function and recipe names
// to their Recipe definition. Both are plain data lookups — a Recipe
// never embeds or extends another Recipe, it just lists section names.
type Registry struct {
	sections map[string]Section
	recipes  map[string]Recipe
}

// NewRegistry builds the Registry carrying every section and the seven
// authoritative recipes named in spec.md: Braindump, Yap, Ramble, Discuss,
// TaskExecution, OpusReview, Enrichment.
func NewRegistry() *Registry {
	r := &Registry{
		sections: map[string]Section{
			"project_context":      ProjectContext,
			"project_metadata":     ProjectMetadata,
			"codebase_snapshot":    CodebaseSnapshot,
			"feature_listing":      FeatureListing,
			"subsystem_context":    SubsystemContext,
			"subsystem_files":      SubsystemFiles,
			"subsystem_state":      SubsystemState,
			"task_listing":         TaskListing,
			"task_details":         TaskDetails,
			"task_files":           TaskFilesSection,
			"dependency_context":   DependencyContext,
			"previous_attempts":    PreviousAttempts,
			"discipline_listing":   DisciplineListing,
			"discipline_persona":   DisciplinePersona,
			"state_files":          StateFiles,
			"user_input":           UserInput,
			"relevant_learnings":   RelevantLearnings,

			"braindump_instructions":      braindumpInstructions,
			"yap_instructions":            yapInstructions,
			"ramble_instructions":         rambleInstructions,
			"discuss_instructions":        discussInstructions,
			"task_execution_instructions": taskExecutionInstructions,
			"opus_review_instructions":    opusReviewInstructions,
			"enrichment_instructions":     enrichmentInstructions,
		},
		recipes: map[string]Recipe{},
	}

	r.recipes["Braindump"] = Recipe{
		Name: "Braindump",
		Sections: []string{
			"project_context", "project_metadata", "codebase_snapshot", "feature_listing",
			"discipline_listing", "relevant_learnings", "braindump_instructions",
		},
		Tools: []McpTool{ToolAddSignal, ToolCreateTask},
	}
	r.recipes["Yap"] = Recipe{
		Name: "Yap",
		Sections: []string{
			"project_context", "project_metadata", "feature_listing", "subsystem_state",
			"yap_instructions",
		},
		Tools: nil,
	}
	r.recipes["Ramble"] = Recipe{
		Name: "Ramble",
		Sections: []string{
			"project_context", "codebase_snapshot", "feature_listing", "relevant_learnings",
			"ramble_instructions",
		},
		Tools: []McpTool{ToolCreateTask},
	}
	r.recipes["Discuss"] = Recipe{
		Name: "Discuss",
		Sections: []string{
			"project_context", "project_metadata", "feature_listing", "user_input",
			"discuss_instructions",
		},
		Tools: []McpTool{ToolCreateTask, ToolListTasks},
	}
	r.recipes["TaskExecution"] = Recipe{
		Name: "TaskExecution",
		Sections: []string{
			"project_context", "subsystem_context", "subsystem_files", "subsystem_state",
			"dependency_context", "previous_attempts", "discipline_persona", "state_files",
			"relevant_learnings", "task_files", "task_details", "task_execution_instructions",
		},
		Tools: []McpTool{ToolSetTaskStatus, ToolAddSignal, ToolSearchComments, ToolGetTaskDetails},
	}
	r.recipes["OpusReview"] = Recipe{
		Name: "OpusReview",
		Sections: []string{
			"project_context", "subsystem_context", "task_details", "task_files",
			"previous_attempts", "opus_review_instructions",
		},
		Tools: []McpTool{ToolAddSignal},
	}
	r.recipes["Enrichment"] = Recipe{
		Name: "Enrichment",
		Sections: []string{
			"project_context", "feature_listing", "task_listing", "enrichment_instructions",
		},
		Tools: []McpTool{ToolUpdateTask, ToolListTasks},
	}

	return r
}

// Section looks up a section by name.
func (r *Registry) Section(name string) (Section, bool) {
	s, ok := r.sections[name]
	return s, ok
}

// Recipe looks up a recipe by name.
func (r *Registry) Recipe(name string) (Recipe, bool) {
	rec, ok := r.recipes[name]
	return rec, ok
}

// RecipeNames returns the names of every registered recipe.
func (r *Registry) RecipeNames() []string {
	names := make([]string, 0, len(r.recipes))
	for name := range r.recipes {
		names = append(names, name)
	}
	return names
}

// CustomRecipe builds an ad-hoc Recipe from an arbitrary ordered subset of
// section names, silently dropping any name the Registry doesn't know so a
// newer caller's section list stays forward-compatible with an older
// binary.
func (r *Registry) CustomRecipe(name string, sectionNames []string, tools []McpTool) Recipe {
	kept := make([]string, 0, len(sectionNames))
	for _, n := range sectionNames {
		if _, ok := r.sections[n]; ok {
			kept = append(kept, n)
		}
	}
	return Recipe{Name: name, Sections: kept, Tools: tools}
}
