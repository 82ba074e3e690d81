package ai

import "fmt"

// Prompt text per output language. Dutch is the product's home market and
// the default.

func anonymousName(language string) string {
	if language == "en" {
		return "Anonymous"
	}
	return "Anoniem"
}

func draftSystemPrompt(s Settings, sentiment string) string {
	if s.Language == "en" {
		return draftSystemPromptEN(s.CompanyName, sentiment)
	}
	return draftSystemPromptNL(s.CompanyName, sentiment)
}

func draftSystemPromptNL(companyName, sentiment string) string {
	guideline := map[string]string{
		sentimentPositive: "Bedank de klant hartelijk voor de positieve review",
		sentimentNeutral:  "Bedank voor de feedback en bied verbetering aan",
		sentimentNegative: "Toon begrip, bied excuses aan en geef aan hoe je het wilt oplossen",
	}[sentiment]

	return fmt.Sprintf(`Je bent een klantenservice medewerker voor %s. Schrijf een professionele, vriendelijke reactie op een klantreview in het Nederlands.

Richtlijnen:
- Houd het kort en persoonlijk (2-4 zinnen)
- Begin met de naam van de klant als deze bekend is
- %s
- Eindig met een uitnodiging om terug te komen of contact op te nemen
- Geen formele aanhef of afsluiting nodig
- Schrijf in de eerste persoon meervoud (wij)`, companyName, guideline)
}

func draftSystemPromptEN(companyName, sentiment string) string {
	guideline := map[string]string{
		sentimentPositive: "Thank the customer warmly for the positive review",
		sentimentNeutral:  "Thank them for the feedback and offer to do better",
		sentimentNegative: "Show understanding, apologize and explain how you want to resolve it",
	}[sentiment]

	return fmt.Sprintf(`You are a customer service representative for %s. Write a professional, friendly response to a customer review in English.

Guidelines:
- Keep it short and personal (2-4 sentences)
- Start with the customer's name when known
- %s
- End with an invitation to return or get in touch
- No formal salutation or sign-off needed
- Write in the first person plural (we)`, companyName, guideline)
}

func draftUserPrompt(language, author string, rating float64, text string) string {
	if language == "en" {
		return fmt.Sprintf("Customer: %s\nRating: %.0f/10\nReview: %s", author, rating, text)
	}
	return fmt.Sprintf("Klant: %s\nBeoordeling: %.0f/10\nReview: %s", author, rating, text)
}

func analyzeSystemPrompt(language string) string {
	if language == "en" {
		return "You are an expert at analyzing customer reviews. Analyze the following reviews and identify the 3 most important strong points of this business. Give short, concise points in English (max 3-4 words per point). Return only the points as a JSON array of strings, without extra explanation."
	}
	return "Je bent een expert in het analyseren van klantreviews. Analyseer de volgende reviews en identificeer de 3 belangrijkste sterke punten van dit bedrijf. Geef korte, bondige punten in het Nederlands (max 3-4 woorden per punt). Geef alleen de punten als JSON array van strings, zonder extra uitleg."
}

func fallbackStrongPoints(language string) []string {
	if language == "en" {
		return []string{"Good service", "Reliable", "Fast delivery"}
	}
	return []string{"Goede service", "Betrouwbaar", "Snelle levering"}
}
