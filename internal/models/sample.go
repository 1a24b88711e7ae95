// internal/models/sample.go
package models

// SampleEbookTitle is the fixed title of the built-in fallback bundle.
const SampleEbookTitle = "The Complete Guide to Data-Driven Marketing"

// SampleBundle returns the deterministic bundle shown when full generation fails.
// Every call returns a fresh copy.
func SampleBundle() *ContentBundle {
	return &ContentBundle{
		Ebook: EbookArtifact{
			Title:   SampleEbookTitle,
			Preview: "Discover how leading marketing teams turn scattered campaign data into decisions. This guide walks through the frameworks, metrics and workflows that help you prove ROI and scale what works.",
			Chapters: []string{
				"Introduction to Data-Driven Marketing",
				"Building Your Measurement Framework",
				"Choosing the Right Metrics",
				"Turning Insights into Action",
				"Scaling Your Success",
			},
		},
		SocialPosts: []SocialPlatformGroup{
			{
				Platform: "LinkedIn",
				Posts: []string{
					"Most marketing teams spend more time building reports than acting on them. Our new guide shows how to flip that ratio. #Marketing #Analytics",
					"What would you do with 10 extra hours a week? Teams using unified campaign dashboards are finding out. Read the guide.",
					"Proving marketing ROI should not require a data science degree. Here is a framework any team can adopt this quarter.",
				},
			},
			{
				Platform: "Twitter",
				Posts: []string{
					"Stop drowning in spreadsheets. Start making decisions. New guide to data-driven marketing is live.",
					"3 metrics every marketing director should review weekly. Thread below.",
				},
			},
		},
		EmailFlow: []EmailSequenceItem{
			{Type: "welcome", Subject: "Welcome! Your data-driven marketing guide is here", Preview: "Thanks for downloading the guide. Here is where to start..."},
			{Type: "nurture", Subject: "The one metric most teams ignore", Preview: "Chapter 3 of the guide covers a metric that changes how you plan budgets..."},
			{Type: "conversion", Subject: "See it in action: book a 20-minute demo", Preview: "You have read the framework. Now see how it works with your own data..."},
		},
		SdrEmails: []SdrSequenceItem{
			{Day: 1, Subject: "Quick question about your reporting workflow", Body: "Hi {{firstName}},\n\nI noticed your team is scaling campaigns quickly. How much time goes into building weekly reports today?\n\nBest,\n{{senderName}}"},
			{Day: 3, Subject: "Following up: cutting reporting time in half", Body: "Hi {{firstName}},\n\nTeams similar to yours cut reporting time by 50% after unifying their campaign data. Worth a short conversation?\n\nBest,\n{{senderName}}"},
			{Day: 7, Subject: "Last note from me", Body: "Hi {{firstName}},\n\nI will leave it here. If proving marketing ROI becomes a priority this quarter, I am happy to share what has worked for others.\n\nBest,\n{{senderName}}"},
		},
	}
}
