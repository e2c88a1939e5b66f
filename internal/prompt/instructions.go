package prompt

// Each recipe ends with exactly one instructions section naming what the
// agent should do with everything rendered above it. These are always
// present (never elided) unless explicitly disabled via an override, since
// a recipe without its closing instructions has no task to perform.

func braindumpInstructions(*PromptContext) (string, bool) {
	return "## Instructions\n\n" +
		"Freely explore the project above and dump every idea, gap, and risk you notice. " +
		"Do not edit files. Call add_signal for anything worth remembering; call create_task " +
		"for anything that should become tracked work.", true
}

func yapInstructions(*PromptContext) (string, bool) {
	return "## Instructions\n\n" +
		"Talk through the current state of the project out loud, as if thinking to yourself. " +
		"No tool calls are required; this is a reflection pass, not an execution pass.", true
}

func rambleInstructions(*PromptContext) (string, bool) {
	return "## Instructions\n\n" +
		"Pick whatever in the project above seems most worth improving right now and make the " +
		"case for it. You may call create_task to propose it, but do not implement it.", true
}

func discussInstructions(*PromptContext) (string, bool) {
	return "## Instructions\n\n" +
		"Respond to the user input above. Ask clarifying questions if the request is ambiguous; " +
		"otherwise propose a concrete plan. Do not edit files in this recipe.", true
}

func taskExecutionInstructions(*PromptContext) (string, bool) {
	return "## Instructions\n\n" +
		"Implement the task above. Work through its acceptance criteria one at a time. When every " +
		"criterion is satisfied, call set_task_status with status=done; if you get blocked, call " +
		"set_task_status with status=blocked and explain why via add_signal. Call add_signal for any " +
		"gotcha future iterations should know about.", true
}

func opusReviewInstructions(*PromptContext) (string, bool) {
	return "## Instructions\n\n" +
		"Review the work above as a senior engineer would: correctness, missed edge cases, and " +
		"whether the acceptance criteria are genuinely met. Call add_signal for every issue found. " +
		"Do not modify task status yourself.", true
}

func enrichmentInstructions(*PromptContext) (string, bool) {
	return "## Instructions\n\n" +
		"Review open tasks for missing detail — thin descriptions, absent acceptance criteria, " +
		"stale dependencies — and call update_task to fill the gaps. Do not change task status.", true
}
