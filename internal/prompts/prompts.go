package prompts

// ============================================================================
// Form Analysis Prompts (chunked HTML -> structured field instructions)
// ============================================================================
//
// Templates use {placeholder} markers filled by the discovery engine:
// {profile}, {job}, {chunk}, {summary}, {chunk_num}, {total_chunks}.
// The model must answer with JSON between ```json ``` fences.

// BasicInfoPrompt asks the model to locate and value standard identity fields
// in one HTML chunk of an application form.
const BasicInfoPrompt = `Analyze this form chunk and identify fields to fill. Focus on:
- Personal info (name, email, phone)
- Professional info (LinkedIn, GitHub)
- Location details

For each field:
1. Provide exact locator as a list ["type", "value"] (e.g., ["id", "full_name"] or ["xpath", "//input[@name='firstName']"])
2. Mark if required (true/false)
3. Suggest value from profile or generate if missing
4. For sensitive fields, recommend 'prefer not to say'

Current Profile:
{profile}

Job Details:
{job}

HTML Chunk:
{chunk}

Summary of previous processing: {summary}
Chunk {chunk_num} of {total_chunks}

IMPORTANT: Your response must be VALID JSON between ` + "```json ```" + ` markers.
Do NOT include any other text outside these markers.

Example response:
` + "```json" + `
{
    "fields": [
        {
            "label": "Full Name",
            "type": "text",
            "required": true,
            "locator": ["id", "full_name"],
            "value": "John Doe",
            "source": "profile"
        }
    ],
    "summary": "Processed personal info fields"
}
` + "```"

// CustomQuestionsPrompt asks the model to extract free-form screening
// questions from a chunk and draft answers grounded in the profile.
const CustomQuestionsPrompt = `Analyze these custom job application questions from the HTML chunk:

Job Requirements (for context):
{job}

Applicant Profile (for context):
{profile}

Summary from previous chunks (if any):
{summary}

Current HTML Chunk of Questions ({chunk_num}/{total_chunks}):
{chunk}

For each distinct question found in this chunk:
1. Identify the main question text/label.
2. Determine the question type (e.g., "text", "textarea", "radio", "checkbox", "select").
3. Provide an exact locator for the input field(s) as a list ["type", "value"]. For radio/checkbox groups, provide the locator for the specific option to select if inferable, otherwise the group.
4. Based on the profile and job context, generate a concise, professional answer.
5. If the question is sensitive (e.g., race, gender, disability) and an answer is not mandatory or can be "Prefer not to say", suggest that or an empty answer.
6. If it's a radio/checkbox and you need to choose an option, the "answer" should be the value/text of the option to select, and the "locator" should point to that specific option's input element.

Return a VALID JSON object between ` + "```json ```" + ` markers:
` + "```json" + `
{
    "questions": [
        {
            "text": "Are you authorized to work in the US?",
            "type": "radio",
            "locator": ["xpath", "//input[@name='work_auth' and @value='Yes']"],
            "answer": "Yes",
            "source": "profile",
            "sensitive": false
        }
    ],
    "summary": "Identified work authorization question."
}
` + "```" + `
If no questions are found in this chunk, return an empty "questions" list.`

// ResumeLocatorPrompt asks the model to find the file input used for the
// resume upload, when the default selectors fail.
const ResumeLocatorPrompt = `Analyze this HTML chunk of an application form. Identify the primary file input field for uploading a RESUME.
Focus on <input type="file"> elements. Consider labels like "Resume", "CV", "Attach Resume".
Prioritize inputs that accept PDF or DOCX files if specified.

Current Profile:
{profile}

Job Details:
{job}

HTML Chunk:
{chunk}

Summary of previous processing: {summary}
Chunk {chunk_num} of {total_chunks}

Return a VALID JSON object between ` + "```json ```" + ` markers with the locator for the resume upload field:
` + "```json" + `
{
    "field_label": "Resume Upload",
    "locator": ["xpath", "//input[@id='resume_upload_input']"],
    "file_types": ["pdf", "docx"],
    "summary": "Found resume input field."
}
` + "```" + `
If no suitable resume input is found in this chunk, return null for "locator".`

// ============================================================================
// Single-Field Value Generation
// ============================================================================

// FieldValueSystemPrompt frames one-off value generation for a field the
// form analysis could not value from the profile.
const FieldValueSystemPrompt = `You are an assistant helping fill out a job application. Generate an appropriate and concise value for a single form field. Only provide the value, no explanations or labels.`

// FieldValueUserTemplate is filled with {label}, {type}, {required},
// {job} and {profile}.
const FieldValueUserTemplate = `Generate an appropriate and concise value for the following form field:
Field Label: "{label}"
Field Type: "{type}"
Is Required: {required}
{job}
{profile}
Context: This is part of an automated job application process.
If the field is about salary, say 'Based on profile and market rates'.
If it's a generic 'cover letter' or 'additional information' and not strictly required, suggest a brief positive closing or 'Refer to resume'.
If it's a question you cannot answer from the provided profile, state 'Information not available in profile.'
Only provide the value, no explanations or labels. If not applicable and not required, output 'N/A'.
Value:`

// ============================================================================
// Agent Filler Prompts (autonomous form completion)
// ============================================================================

// AgentSystemPrompt frames the step loop: the agent is shown a page snapshot
// each turn and must answer with exactly one JSON action.
const AgentSystemPrompt = `You are an autonomous browser agent completing a job application form. Each turn you receive the current page URL and a simplified HTML snapshot. Respond with EXACTLY ONE action as a JSON object between ` + "```json ```" + ` markers, nothing else.

Available actions:
{"action": "click", "locator": ["css", "button.submit"], "reason": "..."}
{"action": "type", "locator": ["css", "input#email"], "value": "...", "reason": "..."}
{"action": "select", "locator": ["css", "select#state"], "value": "CA", "reason": "..."}
{"action": "upload", "locator": ["css", "input[type=file]"], "file": "resume", "reason": "..."}
{"action": "navigate", "url": "https://...", "reason": "..."}
{"action": "scroll", "reason": "..."}
{"action": "done", "outcome": "submitted" | "failed", "reason": "..."}

Rules:
- Read each field's LABEL before filling it; use only the matching value from the candidate info. If the label says "First Name", use only the first name.
- Check agreement checkboxes ("I agree", "I consent").
- For sensitive demographic questions (race, gender, disability, veteran status), select "Prefer not to say" or "Decline to self identify" when available.
- For autocomplete fields, type a prefix and then click the matching suggestion; if no suggestion appears, leave the field empty rather than typing a wrong value.
- Never invent information not present in the candidate info.
- Use "done" with outcome "submitted" only after you see a submission confirmation on the page.
- Use "done" with outcome "failed" if you are blocked (captcha, login wall, missing required data).`

// AgentTaskTemplate is the opening user message for an agent run. Filled with
// {url}, {first_name}, {last_name}, {email}, {phone}, {location}, {linkedin},
// {resume_path}, {cover_letter_path}, {job_title}, {company}, {job_excerpt},
// {background}.
const AgentTaskTemplate = `Go to {url} and fill the job application form.

MY BASIC INFO:
Name: {first_name} {last_name}
Email: {email}
Phone: {phone}
Location: {location}
LinkedIn: {linkedin}
Resume File: {resume_path}
Cover Letter File: {cover_letter_path}

JOB CONTEXT:
Position: {job_title}
Company: {company}
Job Description (excerpt): {job_excerpt}

MY BACKGROUND & EXPERIENCE:
{background}

Fill ALL form fields, upload the resume where asked, answer screening questions from my background, and submit the application.`

// AgentStepTemplate is the per-turn user message. Filled with {step},
// {max_steps}, {url} and {page}.
const AgentStepTemplate = `Step {step} of {max_steps}.
Current URL: {url}

Page snapshot:
{page}

What is the next single action?`
