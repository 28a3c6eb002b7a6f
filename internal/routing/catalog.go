package routing

import "blackroad.io/operator/models"

// Keyword maps an intent substring to the domain it votes for.
type Keyword struct {
	Keyword string                    `json:"keyword" yaml:"keyword"`
	Domain  models.OrganizationDomain `json:"domain" yaml:"domain"`
}

// Catalog is the complete routing data set. Slice order is significant:
// organizations are listed and matched in order, and keywords are walked in
// order when scoring an intent.
type Catalog struct {
	Organizations []models.Organization      `json:"organizations" yaml:"organizations"`
	Domains       []models.DomainEntry       `json:"domains" yaml:"domains"`
	Keywords      []Keyword                  `json:"keywords" yaml:"keywords"`
	Strategies    []models.RateLimitStrategy `json:"strategies" yaml:"strategies"`
}

// DefaultOrganization receives intents that match no keyword.
const DefaultOrganization = "BlackRoad-OS"

// DefaultCatalog returns a fresh copy of the built-in routing data.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Organizations: []models.Organization{
			{Name: "Blackbox-Enterprises", Domain: models.DomainCorporate, Responsibility: "Corporate and Enterprise Integrations", Repositories: []string{"blackbox-api", "enterprise-bridge"}},
			{Name: "BlackRoad-AI", Domain: models.DomainAI, Responsibility: "Core LLM and Reasoning Engine Development", Repositories: []string{"lucidia-core", "blackroad-reasoning"}},
			{Name: "BlackRoad-Archive", Domain: models.DomainArchive, Responsibility: "Long-term Data Persistence and Documentation", Repositories: []string{"blackroad-os-docs", "history-ledger"}},
			{Name: "BlackRoad-Cloud", Domain: models.DomainCloud, Responsibility: "Infrastructure as Code and Orchestration", Repositories: []string{"cloud-orchestrator", "railway-deploy"}},
			{Name: "BlackRoad-Education", Domain: models.DomainEducation, Responsibility: "Onboarding and Documentation Frameworks", Repositories: []string{"br-help", "onboarding-portal"}},
			{Name: "BlackRoad-Foundation", Domain: models.DomainFoundation, Responsibility: "Governance and Protocol Standards", Repositories: []string{"protocol-specs", "governance-rules"}},
			{Name: "BlackRoad-Gov", Domain: models.DomainGov, Responsibility: "Regulatory Compliance and Policy Enforcement", Repositories: []string{"compliance-audit", "regulatory-tools"}},
			{Name: "BlackRoad-Hardware", Domain: models.DomainHardware, Responsibility: "SBC and IoT Device Management", Repositories: []string{"blackroad-agent-os", "pi-firmware"}},
			{Name: "BlackRoad-Interactive", Domain: models.DomainInteractive, Responsibility: "User Interface and Frontend Systems", Repositories: []string{"blackroad-os-web", "interactive-ui"}},
			{Name: "BlackRoad-Labs", Domain: models.DomainLabs, Responsibility: "Experimental R&D and Prototyping", Repositories: []string{"experimental-agents", "quantum-lab"}},
			{Name: "BlackRoad-Media", Domain: models.DomainMedia, Responsibility: "Content Delivery and Public Relations", Repositories: []string{"media-engine", "pr-automation"}},
			{Name: "BlackRoad-OS", Domain: models.DomainOS, Responsibility: "Core System Kernel and CLI Development", Repositories: []string{"blackroad-cli", "kernel-source"}},
			{Name: "BlackRoad-Security", Domain: models.DomainSecurity, Responsibility: "Auditing, Cryptography, and Security", Repositories: []string{"security-audit", "hash-witnessing"}},
			{Name: "BlackRoad-Studio", Domain: models.DomainStudio, Responsibility: "Production Assets and Creative Tooling", Repositories: []string{"lucidia-studio", "creative-assets"}},
			{Name: "BlackRoad-Ventures", Domain: models.DomainVentures, Responsibility: "Strategic Growth and Ecosystem Funding", Repositories: []string{"tokenomics-api", "venture-cap"}},
		},
		Domains: []models.DomainEntry{
			{Domain: "blackboxprogramming.io", UseCase: "Developer Education and APIs", Organization: "Blackbox-Enterprises"},
			{Domain: "blackroad.io", UseCase: "Core Project Landing Page", Organization: "BlackRoad-OS"},
			{Domain: "blackroad.company", UseCase: "Corporate and HR Operations", Organization: "BlackRoad-Ventures"},
			{Domain: "blackroad.me", UseCase: "Personal Agent Identity Nodes", Organization: "BlackRoad-AI"},
			{Domain: "blackroad.network", UseCase: "Distributed Network Interface", Organization: "BlackRoad-Cloud"},
			{Domain: "blackroad.systems", UseCase: "Infrastructure and System Ops", Organization: "BlackRoad-Cloud"},
			{Domain: "blackroadai.com", UseCase: "AI Research and API Hosting", Organization: "BlackRoad-AI"},
			{Domain: "blackroadinc.us", UseCase: "US-based Governance and Legal", Organization: "BlackRoad-Gov"},
			{Domain: "blackroadqi.com", UseCase: "Quantum Intelligence Research", Organization: "BlackRoad-Labs"},
			{Domain: "blackroadquantum.com", UseCase: "Primary Quantum Lab Interface", Organization: "BlackRoad-Labs"},
			{Domain: "lucidia.earth", UseCase: "Memory Layer and Personal AI", Organization: "BlackRoad-AI"},
			{Domain: "lucidia.studio", UseCase: "Creative and Asset Management", Organization: "BlackRoad-Studio"},
			{Domain: "roadchain.io", UseCase: "Blockchain and Witnessing Ledger", Organization: "BlackRoad-Security"},
			{Domain: "roadcoin.io", UseCase: "Tokenomics and Financial Interface", Organization: "BlackRoad-Ventures"},
		},
		Keywords: []Keyword{
			{"security", models.DomainSecurity},
			{"audit", models.DomainSecurity},
			{"vulnerability", models.DomainSecurity},
			{"cryptography", models.DomainSecurity},
			{"hash", models.DomainSecurity},
			{"roadchain", models.DomainSecurity},
			{"llm", models.DomainAI},
			{"inference", models.DomainAI},
			{"lucidia", models.DomainAI},
			{"reasoning", models.DomainAI},
			{"model", models.DomainAI},
			{"deploy", models.DomainCloud},
			{"infrastructure", models.DomainCloud},
			{"railway", models.DomainCloud},
			{"droplet", models.DomainCloud},
			{"orchestration", models.DomainCloud},
			{"raspberry", models.DomainHardware},
			{"raspberry pi", models.DomainHardware},
			{"firmware", models.DomainHardware},
			{"iot", models.DomainHardware},
			{"sbc", models.DomainHardware},
			{"cli", models.DomainOS},
			{"kernel", models.DomainOS},
			{"operator", models.DomainOS},
			{"experiment", models.DomainLabs},
			{"quantum", models.DomainLabs},
			{"research", models.DomainLabs},
			{"frontend", models.DomainInteractive},
			{"ui", models.DomainInteractive},
			{"website", models.DomainInteractive},
			{"content", models.DomainMedia},
			{"media", models.DomainMedia},
			{"blog", models.DomainMedia},
			{"onboarding", models.DomainEducation},
			{"tutorial", models.DomainEducation},
			{"documentation", models.DomainEducation},
			{"compliance", models.DomainGov},
			{"regulatory", models.DomainGov},
			{"policy", models.DomainGov},
			{"governance", models.DomainFoundation},
			{"protocol", models.DomainFoundation},
			{"archive", models.DomainArchive},
			{"backup", models.DomainArchive},
			{"history", models.DomainArchive},
			{"creative", models.DomainStudio},
			{"design", models.DomainStudio},
			{"asset", models.DomainStudio},
			{"tokenomics", models.DomainVentures},
			{"funding", models.DomainVentures},
			{"venture", models.DomainVentures},
			{"enterprise", models.DomainCorporate},
			{"corporate", models.DomainCorporate},
		},
		Strategies: []models.RateLimitStrategy{
			{
				Provider:      "github_copilot",
				ObservedLimit: "RPM / Token Exhaustion",
				Mitigation:    "Redirect to local Raspberry Pi LiteLLM proxy",
				ProxyURL:      "http://raspberrypi.local:4000",
				EnvVar:        "GH_COPILOT_OVERRIDE_PROXY_URL",
			},
			{Provider: "huggingface", ObservedLimit: "IP-based Rate Limit", Mitigation: "Rotate HF_TOKEN or use authenticated SSH keys"},
			{Provider: "google_drive", ObservedLimit: "Individual User Quota", Mitigation: "Use Shared Drives with GSA Content Manager role"},
			{Provider: "digitalocean", ObservedLimit: "Concurrent Build Limits", Mitigation: "Queue tasks via Layer 7 Orchestration"},
			{Provider: "salesforce", ObservedLimit: "Daily API Request Cap", Mitigation: "Batch updates via Data Cloud Streaming Transforms"},
		},
	}
}
