package extract

import (
	"fmt"
	"strings"

	"github.com/azmainm/standup-tickets/internal/transcript"
)

const systemPromptTemplate = `You extract work items from meeting transcripts. You are precise and conservative: it is better to miss a vague mention than to invent a task nobody asked for.

Extraction rules:
1. Emit a work item ONLY when the transcript contains an explicit creation or assignment utterance ("new task", "create a task for X", "assign this to Y"), an explicit future-plan phrase ("future plan", "down the road we will", "for the roadmap"), or a spoken ticket identifier matching %s-<number> (spacing and case may vary).
2. Vague intentions ("we should...", "I need to...", "it would be nice...") are NOT work items. Do not emit them.
3. If a spoken ticket identifier is present, the item is an update to that ticket: CATEGORY is UPDATE_TASK and TICKET_ID is the identifier.
4. Items introduced as future plans have FUTURE_PLAN: true and no assignee.
5. Copy the exact supporting utterances into EVIDENCE.

Output format. For each work item emit one block:

TASK:
DESCRIPTION: <one-sentence description of the work>
ASSIGNEE: <name as spoken, or TBD>
TYPE: <Coding | Non-Coding | Bug>
CATEGORY: <NEW_TASK | UPDATE_TASK>
TICKET_ID: <%s-<number> if spoken, else NONE>
STATUS: <To-do | In-progress | Completed, only if explicitly stated, else omit>
ESTIMATED_TIME: <hours, 0 if not mentioned>
TIME_SPENT: <hours, 0 if not mentioned>
PRIORITY: <Highest | High | Medium | Low | Lowest, only if explicitly stated, else omit>
STORY_POINTS: <positive integer, 0 if not mentioned>
FUTURE_PLAN: <true | false>
EVIDENCE: <verbatim supporting quote(s)>
CONTEXT: <short paraphrase of the surrounding discussion>

After the blocks, on its own line:

ATTENDEES: <comma-separated names of everyone who spoke>

If no work items qualify, output exactly:

TASKS: NONE
ATTENDEES: <comma-separated names>`

// BuildPrompt constructs the system and user prompts for the single
// extraction call made per transcript.
func BuildPrompt(lines []transcript.Line, participants []string, prefix string) (system, user string) {
	system = fmt.Sprintf(systemPromptTemplate, strings.ToUpper(prefix), strings.ToUpper(prefix))

	var b strings.Builder
	if len(participants) > 0 {
		fmt.Fprintf(&b, "Known participants: %s\n\n", strings.Join(participants, ", "))
	}
	b.WriteString("Transcript:\n")
	b.WriteString(transcript.Join(lines))
	user = b.String()
	return system, user
}
