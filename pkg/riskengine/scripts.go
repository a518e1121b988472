package riskengine

import "strings"

// ScriptRiskProfile lists the operational risks of running a vendor starter script.
type ScriptRiskProfile struct {
	ScriptPath          string   `json:"script_path" yaml:"script_path"`
	Platform            string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Risks               []string `json:"risks" yaml:"risks"`
	RequiredPermissions []string `json:"required_permissions" yaml:"required_permissions"`
	EnvironmentConcerns []string `json:"environment_concerns" yaml:"environment_concerns"`
	DataExposureRisks   []string `json:"data_exposure_risks" yaml:"data_exposure_risks"`
}

// scriptProfiles is matched in order against the lowercased script path.
var scriptProfiles = []ScriptRiskProfile{
	{
		Platform: "servicenow",
		Risks: []string{
			"ServiceNow credentials exposure",
			"Unauthorized incident creation",
			"Access to sensitive CMDB data",
		},
		RequiredPermissions: []string{
			"ServiceNow API access",
			"Incident table read/write",
			"User table read access",
		},
		EnvironmentConcerns: []string{
			"Production ServiceNow access",
			"Credential storage and rotation",
		},
		DataExposureRisks: []string{
			"Employee information in user tables",
			"Sensitive incident details",
			"System configuration data",
		},
	},
	{
		Platform: "fiserv",
		Risks: []string{
			"Payment card data exposure",
			"PCI DSS compliance violations",
			"Unauthorized financial transactions",
			"Merchant credential compromise",
		},
		RequiredPermissions: []string{
			"Fiserv API credentials",
			"Payment processing rights",
			"Fraud detection access",
		},
		EnvironmentConcerns: []string{
			"PCI DSS compliant environment",
			"Secure credential management",
			"Transaction logging and monitoring",
		},
		DataExposureRisks: []string{
			"Credit card numbers",
			"Customer payment information",
			"Transaction details",
			"Merchant financial data",
		},
	},
	{
		Platform: "azure",
		Risks: []string{
			"Cloud resource provisioning costs",
			"Unauthorized resource access",
			"Data breach through misconfiguration",
			"Service principal compromise",
		},
		RequiredPermissions: []string{
			"Azure subscription access",
			"Resource group management",
			"Key Vault access rights",
		},
		EnvironmentConcerns: []string{
			"Production Azure environment",
			"Resource cost management",
			"Network security configuration",
		},
		DataExposureRisks: []string{
			"Application secrets in Key Vault",
			"Database connection strings",
			"Customer data in storage accounts",
		},
	},
	{
		Platform: "aws",
		Risks: []string{
			"AWS resource provisioning costs",
			"S3 bucket data exposure",
			"Lambda function privilege escalation",
			"IAM credential compromise",
		},
		RequiredPermissions: []string{
			"AWS IAM role/user access",
			"S3 bucket permissions",
			"Lambda execution rights",
			"CloudWatch access",
		},
		EnvironmentConcerns: []string{
			"Production AWS account access",
			"Cost monitoring and alerts",
			"Security group configurations",
		},
		DataExposureRisks: []string{
			"Customer data in S3 buckets",
			"Application logs with sensitive info",
			"Database credentials in parameter store",
		},
	},
}

// ScriptRiskProfileFor returns the profile of the platform named in scriptPath.
// Unknown scripts get a profile with empty lists.
func ScriptRiskProfileFor(scriptPath string) ScriptRiskProfile {
	lower := strings.ToLower(scriptPath)
	for _, p := range scriptProfiles {
		if strings.Contains(lower, p.Platform) {
			return ScriptRiskProfile{
				ScriptPath:          scriptPath,
				Platform:            p.Platform,
				Risks:               append([]string(nil), p.Risks...),
				RequiredPermissions: append([]string(nil), p.RequiredPermissions...),
				EnvironmentConcerns: append([]string(nil), p.EnvironmentConcerns...),
				DataExposureRisks:   append([]string(nil), p.DataExposureRisks...),
			}
		}
	}
	return ScriptRiskProfile{
		ScriptPath:          scriptPath,
		Risks:               []string{},
		RequiredPermissions: []string{},
		EnvironmentConcerns: []string{},
		DataExposureRisks:   []string{},
	}
}

// ScriptPlatforms returns the platforms with a known profile.
func ScriptPlatforms() []string {
	out := make([]string, len(scriptProfiles))
	for i, p := range scriptProfiles {
		out[i] = p.Platform
	}
	return out
}
