package daemon

import "encoding/json"

// Command is one control-boundary request: a named operation plus its
// arguments. Args stay raw until the handler decodes them into the
// command's typed request.
type Command struct {
	Type string          `json:"type"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ErrorPayload attaches a failure to the entity it concerns.
type ErrorPayload struct {
	Classification string `json:"classification"`
	Entity         string `json:"entity,omitempty"`
	Message        string `json:"message"`
}

// Response is the uniform envelope every command returns.
type Response struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

func ok(data any) Response {
	return Response{Success: true, Data: data}
}

// Command argument shapes, one per operation.

type addHostArgs struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Address  string   `json:"address"`
	Port     int      `json:"port,omitempty"`
	Username string   `json:"username"`
	Password string   `json:"password,omitempty"`
	KeyPath  string   `json:"key_path,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type hostArgs struct {
	ID string `json:"id"`
}

type tagArgs struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

type permissionArgs struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Owner     string `json:"owner,omitempty"`
	Group     string `json:"group,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Recursive bool   `json:"recursive,omitempty"`
}

type hookArgs struct {
	ID       string     `json:"id"`
	RepoPath string     `json:"repo_path"`
	Hooks    []hookSpec `json:"hooks"`
}

type hookSpec struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type deployArgs struct {
	ID           string `json:"id"`
	RepoPath     string `json:"repo_path"`
	RepoURL      string `json:"repo_url,omitempty"`
	Branch       string `json:"branch,omitempty"`
	BuildCommand string `json:"build_command,omitempty"`
	PreDeploy    string `json:"pre_deploy,omitempty"`
	PostDeploy   string `json:"post_deploy,omitempty"`
}

type generateKeyArgs struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm,omitempty"`
	Bits      int    `json:"bits,omitempty"`
}

type importKeyArgs struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type keyArgs struct {
	Name string `json:"name"`
}

type logsArgs struct {
	ID    string `json:"id"`
	Lines int    `json:"lines,omitempty"`
}
