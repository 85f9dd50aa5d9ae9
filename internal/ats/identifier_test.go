package ats

import "testing"

func TestIdentify(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "greenhouse board",
			url:      "https://boards.greenhouse.io/openai/jobs/12345",
			expected: "greenhouse",
		},
		{
			name:     "greenhouse embed",
			url:      "https://app.greenhouse.io/embed/job_board?for=acme",
			expected: "greenhouse",
		},
		{
			name:     "workday custom subdomain",
			url:      "https://openai.wd1.myworkdayjobs.com/en-US/External/job/Location/Job-Title_JR-123",
			expected: "workday",
		},
		{
			name:     "lever posting",
			url:      "https://jobs.lever.co/google/123abcde-456-etc",
			expected: "lever",
		},
		{
			name:     "ashby posting",
			url:      "https://cloudflare.jobs.ashbyhq.com/postings/123",
			expected: "ashbyhq",
		},
		{
			name:     "oracle fusion",
			url:      "https://eexi.fa.us2.oraclecloud.com/hcmUI/CandidateExperience/en/sites/CX/job/1001",
			expected: "oraclecloud",
		},
		{
			name:     "oracle candidate experience path",
			url:      "https://careers.oraclecloud.com/hcmUI/CandidateExperience/en/job/42",
			expected: "oraclecloud",
		},
		{
			name:     "successfactors",
			url:      "https://performancemanager5.successfactors.eu/sf/jobreq?jobId=123&company=companyP",
			expected: "unknown",
		},
		{
			name:     "successfactors com domain",
			url:      "https://career5.successfactors.com/career?company=acme",
			expected: "sap_successfactors",
		},
		{
			name:     "bamboohr careers",
			url:      "https://example.bamboohr.com/careers/123",
			expected: "bamboohr",
		},
		{
			name:     "smartrecruiters",
			url:      "https://us.smartrecruiters.com/Company/Job",
			expected: "smartrecruiters",
		},
		{
			name:     "taleo",
			url:      "https://acme.taleo.net/careersection/2/jobdetail.ftl?job=123",
			expected: "taleo",
		},
		{
			name:     "jobvite",
			url:      "https://jobs.jobvite.com/acme/job/oaBcdfw1",
			expected: "jobvite",
		},
		{
			name:     "icims",
			url:      "https://careers-acme.icims.com/jobs/1234/software-engineer/job",
			expected: "icims",
		},
		{
			name:     "custom career site",
			url:      "https://careers.google.com/jobs/results/1234/?company=Google",
			expected: "unknown",
		},
		{
			name:     "uppercase and www normalized",
			url:      "https://WWW.Boards.Greenhouse.IO/acme/jobs/1",
			expected: "greenhouse",
		},
		{
			name:     "www stripped before matching",
			url:      "https://www.jobs.lever.co/acme/1",
			expected: "lever",
		},
		{
			name:     "empty url",
			url:      "",
			expected: "unknown",
		},
		{
			name:     "garbage input",
			url:      "not a url at all",
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identify(tt.url); got != tt.expected {
				t.Errorf("Identify(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestIdentifyDeterministic(t *testing.T) {
	urls := []string{
		"https://boards.greenhouse.io/acme/jobs/123",
		"https://careers.example.com/apply",
		"",
	}
	for _, u := range urls {
		first := Identify(u)
		for i := 0; i < 3; i++ {
			if got := Identify(u); got != first {
				t.Errorf("Identify(%q) not deterministic: %q then %q", u, first, got)
			}
		}
	}
}
