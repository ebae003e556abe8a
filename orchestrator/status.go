package orchestrator

// Status is the outcome tag returned with every turn's reply.
type Status string

const (
	StatusOK               Status = "ok"
	StatusAnalyzing        Status = "analyzing"
	StatusSynthesizing     Status = "synthesizing"
	StatusProfileGenerated Status = "profile_generated"
	StatusAnalysisFailed   Status = "analysis_failed"
	StatusSynthesisFailed  Status = "synthesis_failed"
	StatusNoURLsFound      Status = "no_urls_found"
	StatusAgentError       Status = "agent_error"
)

// Fixed user-facing messages for the degraded paths. Recovery is always
// "tell the user what went wrong and let them try again"; nothing is retried
// automatically.
const (
	msgSynthesisFailed = "I analyzed the images, but had trouble creating a profile summary."

	msgAnalysisFailed = "I tried fetching images from that URL, but couldn't successfully analyze any. " +
		"Could you provide a different URL, perhaps one from a public Instagram profile, " +
		"Pinterest board, or a travel blog post with clear images?"

	msgNoURLsFound = "I checked the page, but couldn't find any image URLs to analyze. " +
		"Please provide a different URL with visible images."

	msgAgentError = "Sorry, I encountered an internal error. Could you please rephrase?"
)
