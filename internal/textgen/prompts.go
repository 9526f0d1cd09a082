package textgen

import (
	"fmt"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/domain"
)

// PromptSet builds the prompts one provider is asked. Both sets ask for the same output
// shapes so a single parser handles every provider.
type PromptSet interface {
	Questions(goal domain.RelationshipType) Prompt
	Tags(text string) Prompt
	Explanation(self, other domain.UserProfile) Prompt
	FollowUp(recent []domain.AiChatMessage) Prompt
	Reply(self, participant domain.UserProfile, history []domain.Message) Prompt
}

// followUpWindow is how many transcript entries a follow-up question sees.
const followUpWindow = 5

func orNotSpecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

func recentTranscript(transcript []domain.AiChatMessage) []domain.AiChatMessage {
	if len(transcript) > followUpWindow {
		return transcript[len(transcript)-followUpWindow:]
	}
	return transcript
}

func chatHistory(self, participant domain.UserProfile, history []domain.Message, describeImages bool) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		name := participant.Name
		if m.SenderID == self.ID {
			name = self.Name
		}
		text := m.Text
		if describeImages && m.ImageURL != "" {
			if text == "" {
				text = "[sent an image]"
			} else {
				text = "[sent an image] " + text
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, text))
	}
	return strings.Join(lines, "\n")
}

// DetailedPrompts is the long-form prompt set used for the primary provider.
type DetailedPrompts struct{}

func (DetailedPrompts) Questions(goal domain.RelationshipType) Prompt {
	return Prompt{
		User: fmt.Sprintf(`Generate 5 unique and engaging onboarding questions with 4 distinct, single-word or short-phrase options each for a user looking for a "%s". The questions should help reveal personality and preferences relevant to that relationship type. Respond ONLY with a valid JSON array of objects in the following format: [{"question": "Your question here?", "options": ["Option 1", "Option 2", "Option 3", "Option 4"]}]. Do not include any other text or markdown.`, goal),
		JSON: true,
	}
}

func (DetailedPrompts) Tags(text string) Prompt {
	return Prompt{
		User: fmt.Sprintf(`Analyze the following user-provided text to extract key personality traits, interests, and hobbies. Categorize them as 'positive' (things they like or are) and 'negative' (things they dislike).
Respond ONLY with a valid JSON object in the format: { "positive": ["tag1", "tag2"], "negative": ["tag3"] }.
If no tags are found for a category, return an empty array. Do not include any other text or markdown.

User Text: %q`, text),
		JSON: true,
	}
}

func (DetailedPrompts) Explanation(self, other domain.UserProfile) Prompt {
	return Prompt{
		User: fmt.Sprintf(`You are MatchAI, a friendly and insightful AI matchmaker. Your goal is to explain why two people might be a great connection and provide a compatibility score.

Respond ONLY with a valid JSON object in the following format:
{
  "rating": <a number between 0 and 100>,
  "explanation": "<a friendly, detailed, and compelling explanation>"
}

Here are the two users:

User A (the person seeing this explanation):
- Name: %s
- Looking for: %s
- Likes: %s
- Dislikes: %s

User B (the potential match):
- Name: %s
- Looking for: %s
- Likes: %s
- Dislikes: %s

Instructions for the JSON content:
1. **rating**: an integer from 0 (completely incompatible) to 100 (a perfect match), based on shared interests, complementary differences, and aligned relationship goals.
2. **explanation**:
    - A warm and specific text. Sprinkle in relevant emojis to make it fun!
    - Highlight specific shared passions using **bold markdown** (e.g., **sci-fi movies**).
    - Frame differences as opportunities for growth.
    - Mention relationship goal alignment if applicable.
    - Make it sound like a real, insightful friend is making an introduction.
    - One to two paragraphs. Do not repeat the user profiles in the explanation.

Remember, respond with ONLY the JSON object and do not use "User A" or "User B" in the response.`,
			self.Name, orNotSpecified(string(self.RelationshipGoal)),
			orNotSpecified(strings.Join(self.Tags.Positive, ", ")), orNotSpecified(strings.Join(self.Tags.Negative, ", ")),
			other.Name, orNotSpecified(string(other.RelationshipGoal)),
			orNotSpecified(strings.Join(other.Tags.Positive, ", ")), orNotSpecified(strings.Join(other.Tags.Negative, ", ")),
		),
		JSON:        true,
		Temperature: 0.7,
		TopP:        0.9,
	}
}

func (DetailedPrompts) FollowUp(recent []domain.AiChatMessage) Prompt {
	lines := make([]string, 0, len(recent))
	for _, m := range recentTranscript(recent) {
		who := "AI"
		if m.Sender == domain.AiSenderUser {
			who = "User"
		}
		lines = append(lines, who+": "+m.Text)
	}
	return Prompt{
		User: fmt.Sprintf(`You are MatchAI, a friendly and curious AI helping a user build their connection profile. The user just said something. Look at the conversation history and ask an engaging, open-ended follow-up question to learn more about them. Your goal is to understand their personality, passions, and what they value in a connection.
- DO ask about feelings, experiences, or preferences.
- DO NOT be repetitive. Ask something new.
- Keep your question to a single sentence.

Conversation History:
%s

Your new, friendly, single-sentence question:`, strings.Join(lines, "\n")),
	}
}

func (DetailedPrompts) Reply(self, participant domain.UserProfile, history []domain.Message) Prompt {
	return Prompt{
		User: fmt.Sprintf(`You are '%[1]s', a person with these traits and interests: %[2]s. You are chatting with '%[3]s'.
Your goal is to have a natural, engaging conversation.
Based on the chat history below, write a short, casual reply as '%[1]s'.
- Keep it concise, like a real text message.
- Do not be overly enthusiastic or use excessive emojis unless it fits the personality.
- Sound like a real person, not an AI assistant.
- Don't repeat what was just said or greet them if the conversation has already started.

Chat History:
%[4]s

Your reply as %[1]s:`, participant.Name, strings.Join(participant.Tags.Positive, ", "), self.Name,
			chatHistory(self, participant, history, true)),
		Temperature: 0.8,
		TopP:        0.9,
		Stop:        []string{self.Name + ":", participant.Name + ":"},
	}
}

// CompactPrompts is the shorter system/user prompt set used for the secondary provider.
type CompactPrompts struct{}

func (CompactPrompts) Questions(goal domain.RelationshipType) Prompt {
	return Prompt{
		System:      fmt.Sprintf(`You generate onboarding questions for a connection app. Create 5 unique, engaging questions for a user seeking a "%s". Each question must have 4 distinct, single-word or short-phrase options. Respond ONLY with a valid JSON object in the format: { "questions": [{"question": "Your question?", "options": ["Option1", "Option2", "Option3", "Option4"]}] }.`, goal),
		User:        "Relationship Type: " + string(goal),
		JSON:        true,
		Temperature: 0.7,
	}
}

func (CompactPrompts) Tags(text string) Prompt {
	return Prompt{
		System:      `Analyze user text to find personality traits, hobbies, and interests. Categorize them into 'positive' (likes) and 'negative' (dislikes). Respond ONLY with a valid JSON object in the format: { "positive": ["tag1"], "negative": ["tag2"] }. If a category is empty, use an empty array.`,
		User:        fmt.Sprintf("User Text: %q", text),
		JSON:        true,
		Temperature: 0.7,
	}
}

func (CompactPrompts) Explanation(self, other domain.UserProfile) Prompt {
	return Prompt{
		System: `You are MatchAI, an insightful AI matchmaker. Explain why two users might connect and give a compatibility score from 0-100. Respond ONLY with a valid JSON object: {"rating": <number>, "explanation": "<friendly, detailed explanation using bold markdown for shared interests>"}.`,
		User: fmt.Sprintf(`User A (whose name is %s) (seeing this): Likes: %s. Dislikes: %s. Goal: %s.
User B (potential match): Name: %s. Likes: %s. Dislikes: %s. Goal: %s.`,
			self.Name, strings.Join(self.Tags.Positive, ", "), strings.Join(self.Tags.Negative, ", "), self.RelationshipGoal,
			other.Name, strings.Join(other.Tags.Positive, ", "), strings.Join(other.Tags.Negative, ", "), other.RelationshipGoal),
		JSON:        true,
		Temperature: 0.7,
	}
}

func (CompactPrompts) FollowUp(recent []domain.AiChatMessage) Prompt {
	lines := make([]string, 0, len(recent))
	for _, m := range recentTranscript(recent) {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Sender, m.Text))
	}
	return Prompt{
		System:      "You are MatchAI, a friendly AI helping a user build their profile. Based on the recent conversation, ask a single, engaging, open-ended follow-up question to learn more about them. Keep it brief.",
		User:        fmt.Sprintf("Recent History:\n%s\n\nYour new question:", strings.Join(lines, "\n")),
		Temperature: 0.7,
	}
}

func (CompactPrompts) Reply(self, participant domain.UserProfile, history []domain.Message) Prompt {
	return Prompt{
		System: fmt.Sprintf(`You are roleplaying as '%s'. Your traits are: %s. Based on the chat history with '%s', write a short, natural, casual reply. Sound like a real person, not an AI. Do not be overly enthusiastic.`,
			participant.Name, strings.Join(participant.Tags.Positive, ", "), self.Name),
		User:        fmt.Sprintf("Chat History:\n%s\n\nYour reply as %s:", chatHistory(self, participant, history, false), participant.Name),
		Temperature: 0.7,
	}
}
