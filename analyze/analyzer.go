// Package analyze extracts domains, technologies and a complexity estimate
// from a free-form project idea. The analysis only steers agent selection and
// configuration rendering; generation itself is driven by the idea text.
package analyze

import (
	"regexp"
	"sort"
	"strings"
)

// Result is the outcome of analyzing one idea.
type Result struct {
	Domains      []string
	Technologies []string
	Complexity   string // "low", "medium" or "high"
	ProjectType  string
	WordCount    int
}

// Analyzer is the idea analysis capability. It is pluggable so callers can
// swap the keyword heuristics for something smarter.
type Analyzer interface {
	Analyze(idea string) Result
}

// domainPatterns maps a domain to the regular expressions that indicate it.
var domainPatterns = map[string][]string{
	"web": {
		`\bweb(?:site|app)?\b`, `\bfrontend\b`, `\bbackend\b`, `\bfull[- ]?stack\b`,
		`\breact\b`, `\bvue\b`, `\bangular\b`, `\bnode(?:\.js)?\b`, `\bexpress\b`,
		`\bapi\b`, `\brest\b`, `\bgraphql\b`, `\bhtml\b`, `\bcss\b`,
		`\bjavascript\b`, `\btypescript\b`, `\bnext\.js\b`, `\bsvelte\b`,
	},
	"mobile": {
		`\bmobile\b`, `\bios\b`, `\bandroid\b`, `\breact native\b`, `\bflutter\b`,
		`\bswift\b`, `\bkotlin\b`, `\bphone\b`, `\btablet\b`,
	},
	"ml": {
		`\bmachine learning\b`, `\bml\b`, `\bai\b`, `\bdeep learning\b`,
		`\bneural network\b`, `\bpytorch\b`, `\btensorflow\b`, `\bscikit[- ]?learn\b`,
		`\bpandas\b`, `\bnumpy\b`, `\bdata science\b`, `\bprediction\b`,
		`\bclassification\b`, `\bregression\b`, `\bnlp\b`, `\bcomputer vision\b`,
	},
	"data": {
		`\banalytics\b`, `\bdatabase\b`, `\bsql\b`, `\bnosql\b`, `\bmongodb\b`,
		`\bpostgres(?:ql)?\b`, `\bmysql\b`, `\bredis\b`, `\belasticsearch\b`,
		`\betl\b`, `\bpipeline\b`, `\bwarehouse\b`, `\bkafka\b`, `\bspark\b`,
	},
	"devops": {
		`\bdevops\b`, `\binfrastructure\b`, `\bdeployment\b`, `\bci/cd\b`,
		`\bdocker\b`, `\bkubernetes\b`, `\baws\b`, `\bazure\b`, `\bgcp\b`,
		`\bterraform\b`, `\bansible\b`, `\bmonitoring\b`, `\bprometheus\b`,
	},
	"desktop": {
		`\bdesktop\b`, `\bgui\b`, `\bqt\b`, `\bgtk\b`, `\belectron\b`, `\btauri\b`,
	},
	"game": {
		`\bgame\b`, `\bunity\b`, `\bunreal\b`, `\bgodot\b`, `\bwebgl\b`, `\bopengl\b`,
	},
	"blockchain": {
		`\bblockchain\b`, `\bcrypto\b`, `\bweb3\b`, `\bethereum\b`, `\bsolidity\b`,
		`\bsmart contract\b`, `\bnft\b`, `\bdapp\b`,
	},
	"testing": {
		`\btest(?:ing)?\b`, `\bqa\b`, `\bquality assurance\b`, `\bunit test\b`,
		`\be2e\b`, `\bcypress\b`, `\bjest\b`, `\bpytest\b`, `\bselenium\b`,
	},
}

// technologies recognized verbatim in the idea text.
var technologies = []string{
	"python", "javascript", "typescript", "go", "rust", "java",
	"react", "vue", "angular", "svelte", "node", "express", "django", "flask",
	"docker", "kubernetes", "aws", "terraform",
	"pytorch", "tensorflow", "postgres", "mongodb", "redis",
}

// complexityIndicators push the estimate from low toward high.
var complexityIndicators = []string{
	"enterprise", "scalable", "distributed", "microservices", "real-time",
	"high-performance", "machine learning", "ai", "blockchain", "advanced",
}

// projectTypeKeywords map project types to their telltale phrases; first
// match wins in the listed order.
var projectTypeKeywords = []struct {
	name     string
	keywords []string
}{
	{"api", []string{"api", "rest", "graphql", "backend", "service"}},
	{"webapp", []string{"web app", "website", "frontend", "dashboard"}},
	{"mobile_app", []string{"mobile app", "ios app", "android app"}},
	{"desktop_app", []string{"desktop app", "gui"}},
	{"cli", []string{"cli", "command line", "terminal", "script"}},
	{"library", []string{"library", "package", "sdk"}},
	{"data_pipeline", []string{"pipeline", "etl", "data processing"}},
	{"ml_model", []string{"model", "prediction", "classification"}},
}

// KeywordAnalyzer is the default keyword/regex implementation of Analyzer.
type KeywordAnalyzer struct {
	domains map[string][]*regexp.Regexp
}

// NewKeywordAnalyzer compiles the detection patterns once.
func NewKeywordAnalyzer() *KeywordAnalyzer {
	a := &KeywordAnalyzer{domains: make(map[string][]*regexp.Regexp, len(domainPatterns))}
	for domain, patterns := range domainPatterns {
		compiled := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			compiled = append(compiled, regexp.MustCompile(p))
		}
		a.domains[domain] = compiled
	}
	return a
}

// Analyze extracts domains, technologies, a complexity estimate and the
// project type from the idea text.
func (a *KeywordAnalyzer) Analyze(idea string) Result {
	lower := strings.ToLower(idea)

	var domains []string
	for domain, patterns := range a.domains {
		for _, re := range patterns {
			if re.MatchString(lower) {
				domains = append(domains, domain)
				break
			}
		}
	}
	sort.Strings(domains)

	var techs []string
	for _, tech := range technologies {
		if strings.Contains(lower, tech) {
			techs = append(techs, tech)
		}
	}

	score := 0
	for _, indicator := range complexityIndicators {
		if strings.Contains(lower, indicator) {
			score++
		}
	}
	complexity := "low"
	switch {
	case score >= 3:
		complexity = "high"
	case score >= 1:
		complexity = "medium"
	}

	projectType := "general"
	for _, pt := range projectTypeKeywords {
		for _, kw := range pt.keywords {
			if strings.Contains(lower, kw) {
				projectType = pt.name
				break
			}
		}
		if projectType != "general" {
			break
		}
	}

	return Result{
		Domains:      domains,
		Technologies: techs,
		Complexity:   complexity,
		ProjectType:  projectType,
		WordCount:    len(strings.Fields(idea)),
	}
}
