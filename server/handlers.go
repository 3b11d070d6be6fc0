package server

import (
	"encoding/json"
	"net/http"

	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/graph"
)

// componentView is the wire shape of one registry entry.
type componentView struct {
	Name     string                       `json:"name"`
	Category string                       `json:"category"`
	Init     map[string]*component.Schema `json:"init"`
	Inputs   map[string]string            `json:"inputs"`
	Outputs  map[string]string            `json:"outputs"`
}

// nodeView is the wire shape of one graph node.
type nodeView struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Status    string   `json:"status"`
	StartedAt *float64 `json:"started_at,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func toNodeView(n graph.Node) nodeView {
	return nodeView{
		ID:        n.ID,
		Type:      n.Type,
		Status:    string(n.Status),
		StartedAt: n.StartedAt,
		Error:     n.Err,
	}
}

// handleListComponents serves the registry in descriptor order.
func (s *Server) handleListComponents(w http.ResponseWriter, _ *http.Request) {
	descs := s.registry.List()
	views := make([]componentView, 0, len(descs))
	for _, d := range descs {
		init := d.Init
		if init == nil {
			init = map[string]*component.Schema{}
		}
		inputs := d.Inputs
		if inputs == nil {
			inputs = map[string]string{}
		}
		outputs := d.Outputs
		if outputs == nil {
			outputs = map[string]string{}
		}
		views = append(views, componentView{
			Name:     d.Name,
			Category: string(d.Category),
			Init:     init,
			Inputs:   inputs,
			Outputs:  outputs,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// handleListNodes serves all nodes ordered by id.
func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := s.rt.Graph().Nodes()
	views := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, toNodeView(n))
	}
	writeJSON(w, http.StatusOK, views)
}

// addNodeRequest is the POST /graph/nodes body.
type addNodeRequest struct {
	Type string         `json:"type"`
	ID   string         `json:"id"`
	Init map[string]any `json:"init"`
}

// handleAddNode validates and adds a node.
func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	n, err := s.rt.AddNode(req.Type, req.ID, req.Init)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNodeView(n))
}

// handleRemoveNode removes one node and its incident edges.
func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.RemoveNode(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleListEdges serves all edges ordered by id.
func (s *Server) handleListEdges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Graph().Edges())
}

// handleAddEdge validates and adds an edge, echoing it back.
func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var e graph.Edge
	if !s.decodeBody(w, r, &e) {
		return
	}
	if err := s.rt.AddEdge(e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleRemoveEdge removes the edge named by the body's four-tuple.
func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	var e graph.Edge
	if !s.decodeBody(w, r, &e) {
		return
	}
	if !s.rt.RemoveEdge(e) {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:  "EdgeNotFound",
			Detail: "edge not found: " + e.ID(),
		})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleStart starts a session over the current graph.
func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.rt.StartAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// handleStop stops the session. Stopping a stopped pipeline succeeds.
func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.rt.StopAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// decodeBody parses a JSON body, writing an InvalidArgs error on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  "InvalidArgs",
			Detail: "malformed request body: " + err.Error(),
		})
		return false
	}
	return true
}
