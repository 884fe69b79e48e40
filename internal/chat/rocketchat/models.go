package rocketchat

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		AuthToken string `json:"authToken"`
		UserID    string `json:"userId"`
	} `json:"data"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type room struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type groupCreateRequest struct {
	Name     string `json:"name"`
	ReadOnly bool   `json:"readOnly"`
}

type groupResponse struct {
	apiResponse
	Group room `json:"group"`
}

type roomRequest struct {
	RoomID string `json:"roomId"`
}

type roomUserRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type user struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

type membersResponse struct {
	apiResponse
	Members []user `json:"members"`
}

type userInfoResponse struct {
	apiResponse
	User user `json:"user"`
}

type message struct {
	RoomID string `json:"rid"`
	Msg    string `json:"msg"`
}

type sendMessageRequest struct {
	Message message `json:"message"`
}
