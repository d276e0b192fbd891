package score

import "testing"

func TestSourceClassifier_Classify(t *testing.T) {
	classifier := NewSourceClassifier()

	tests := []struct {
		name string
		url  string
		want SourceClass
	}{
		{"institutional exact", "https://who.int/emergencies", ClassInstitutional},
		{"institutional subdomain", "https://data.who.int/dashboards", ClassInstitutional},
		{"institutional gov.uk", "https://www.gov.uk/guidance", ClassInstitutional},
		{"journalism", "https://www.reuters.com/world/", ClassJournalism},
		{"journalism co.uk", "https://www.bbc.co.uk/news", ClassJournalism},
		{"misinfo", "https://www.infowars.com/article", ClassMisinformation},
		{"misinfo lookalike subdomain", "https://naturalnews.example.com/x", ClassMisinformation},
		{"unknown", "https://someblog.example.com/post", ClassUnknown},
		{"bare hostname", "apnews.com/article/xyz", ClassJournalism},
		{"host with port", "https://www.nature.com:443/articles/x", ClassInstitutional},
		{"empty", "", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.url); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.url, got, tt.want)
			}
		})
	}
}

func TestSourceClassifier_MisinfoBeatsCredibleSuffix(t *testing.T) {
	classifier := NewSourceClassifier()

	// A misinfo pattern anywhere in the host wins even when the host also
	// ends in a credible domain
	if got := classifier.Classify("https://infowars.bbc.com/story"); got != ClassMisinformation {
		t.Errorf("Expected misinformation to take precedence, got %s", got)
	}
}

func TestSourceClass_Label(t *testing.T) {
	tests := []struct {
		class SourceClass
		want  string
	}{
		{ClassInstitutional, "institutional"},
		{ClassJournalism, "established journalism"},
		{ClassMisinformation, "known misinformation source"},
		{ClassUnknown, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.class.Label(); got != tt.want {
			t.Errorf("Label(%s) = %s, want %s", tt.class, got, tt.want)
		}
	}
}
