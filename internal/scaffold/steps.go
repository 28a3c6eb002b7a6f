package scaffold

import "blackroad.io/operator/models"

// Step is one of the ten scaffold stages, numbered from 1.
type Step int

const (
	StepInitialReviewer Step = iota + 1
	StepTaskToOrganization
	StepTaskToTeam
	StepTaskToProject
	StepTaskToAgent
	StepTaskToRepository
	StepTaskToDevice
	StepTaskToDrive
	StepTaskToCloudflare
	StepTaskToWebsiteEditor
)

// TotalSteps is the number of scaffold stages.
const TotalSteps = 10

var stepNames = [...]string{
	StepInitialReviewer:     "INITIAL_REVIEWER",
	StepTaskToOrganization:  "TASK_TO_ORGANIZATION",
	StepTaskToTeam:          "TASK_TO_TEAM",
	StepTaskToProject:       "TASK_TO_PROJECT",
	StepTaskToAgent:         "TASK_TO_AGENT",
	StepTaskToRepository:    "TASK_TO_REPOSITORY",
	StepTaskToDevice:        "TASK_TO_DEVICE",
	StepTaskToDrive:         "TASK_TO_DRIVE",
	StepTaskToCloudflare:    "TASK_TO_CLOUDFLARE",
	StepTaskToWebsiteEditor: "TASK_TO_WEBSITE_EDITOR",
}

var stepDescriptions = map[Step]string{
	StepInitialReviewer: "Layer 6 (Lucidia Core) agent reviews the request for clarity, " +
		"security compliance, and resource availability.",
	StepTaskToOrganization: "Route the task to one of the 15 BlackRoad organizations based " +
		"on functional domain.",
	StepTaskToTeam: "Distribute the task to a specific team within the organization. " +
		"Pause for manual approval on high-risk operations.",
	StepTaskToProject: "Record the task in a GitHub Project board and synchronize " +
		"metadata with Salesforce for enterprise audit trail.",
	StepTaskToAgent: "Instantiate or assign a specialized autonomous agent using the " +
		"Planner-Executor-Reflector design pattern.",
	StepTaskToRepository: "Identify the target repository, create a new branch, and " +
		"follow GitHub Flow branching strategy.",
	StepTaskToDevice: "Route to device layer for physical execution (firmware updates, " +
		"Raspberry Pi deployments, DigitalOcean Droplets).",
	StepTaskToDrive: "Distribute artifacts to Google Drive using Service Account " +
		"(GSA) pattern for persistent storage.",
	StepTaskToCloudflare: "Execute network configuration changes (Cloudflare Tunnels, " +
		"DNS records) to make services reachable and secured.",
	StepTaskToWebsiteEditor: "Route to AI-driven website editor or headless CMS for " +
		"autonomous content generation and landing page updates.",
}

// UnknownStep is the description of a step outside 1-10.
const UnknownStep = "Unknown step."

// Valid reports whether s is within 1-10.
func (s Step) Valid() bool {
	return s >= StepInitialReviewer && s <= StepTaskToWebsiteEditor
}

// String returns the step's canonical name, e.g. "TASK_TO_TEAM".
func (s Step) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return stepNames[s]
}

// DescribeStep returns the human-readable description of a step.
func DescribeStep(s Step) string {
	if d, ok := stepDescriptions[s]; ok {
		return d
	}
	return UnknownStep
}

// StepByName resolves a canonical step name.
func StepByName(name string) (Step, bool) {
	for s := StepInitialReviewer; s <= StepTaskToWebsiteEditor; s++ {
		if stepNames[s] == name {
			return s, true
		}
	}
	return 0, false
}

// Steps lists every step with its description, in order.
func Steps() []models.StepDescription {
	out := make([]models.StepDescription, 0, TotalSteps)
	for s := StepInitialReviewer; s <= StepTaskToWebsiteEditor; s++ {
		out = append(out, models.StepDescription{Step: int(s), Name: s.String(), Description: DescribeStep(s)})
	}
	return out
}
