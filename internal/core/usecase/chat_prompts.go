package usecase

import "strings"

func buildSearchInstruction() string {
	return `Call the search_medication_data tool whenever the user asks about medications or drug data:
brand or generic names, drug classes, indications, side effects, dosing, routes, interactions, warnings or regulatory information.
Unless the user clearly asks about something unrelated to medications, assume the question is about drug data and call the tool.

Fill userPrompt with a short search phrase built for similarity search:
- keep only the medically relevant terms (drug names, conditions, symptoms, words such as "dosage" or "adverse effects");
- drop filler words and unrelated context;
- keep clinical terminology and codes (NDC, ATC, ingredient names) unchanged;
- put the main drug or concept first when several are mentioned.

Examples:
"What are the side effects of Verzenio?" -> "Verzenio side effects"
"How do you dose pirtobrutinib in MCL?" -> "pirtobrutinib dosage mantle cell lymphoma"

Never change the intent of the question.`
}

func buildReviewInstruction(candidatesJSON string) string {
	return `You receive search results for a user question about medications.
Answer the question using only these results.

Rules:
- Address the question as directly as the results allow.
- Combine facts from several results when they clearly relate to the question.
- Only draw conclusions the text supports.
- Never invent facts that are not in the results.
- Do not mention irrelevant or missing results.
- If nothing answers the question, briefly summarize what the results do contain.
- List in medications only the results relevant to the question, copying id, name and slug exactly.
- Write reasoning as a short, polite reply to the user.

## BEGIN SEARCH RESULTS
` + candidatesJSON + `
## END SEARCH RESULTS`
}

func buildReviewUserPrompt(userPrompt string) string {
	return "## BEGIN USER PROMPT:\n" + strings.TrimSpace(userPrompt) + "\n## END USER PROMPT"
}
