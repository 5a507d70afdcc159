package graphql

const getUserChats = `
query GetUserChats {
  chats(order_by: { created_at: desc }) {
    id
    title
    user_id
    created_at
  }
}`

const getChatMessages = `
query GetChatMessages($chatId: uuid!) {
  messages(where: { chat_id: { _eq: $chatId } }, order_by: { created_at: asc }) {
    id
    chat_id
    query
    response
    isError
    isGenerating
    created_at
  }
}`

const messagesSubscription = `
subscription Messages($chatId: uuid!) {
  messages(where: { chat_id: { _eq: $chatId } }, order_by: { created_at: asc }) {
    id
    chat_id
    query
    response
    isError
    isGenerating
    created_at
  }
}`

const createChat = `
mutation CreateChat($title: String!) {
  insert_chats_one(object: { title: $title }) {
    id
    title
    user_id
    created_at
  }
}`

const createMessage = `
mutation CreateMessage($chatId: uuid!, $query: String!) {
  insert_messages_one(object: { chat_id: $chatId, query: $query }) {
    id
    chat_id
    query
    response
    isError
    isGenerating
    created_at
  }
}`

const updateChatTitle = `
mutation UpdateChatTitle($chatId: uuid!, $title: String!) {
  update_chats_by_pk(pk_columns: { id: $chatId }, _set: { title: $title }) {
    id
    title
  }
}`

// Messages go first so the chat row has no dependents when it is removed.
const deleteChat = `
mutation DeleteChat($chatId: uuid!) {
  delete_messages(where: { chat_id: { _eq: $chatId } }) {
    affected_rows
  }
  delete_chats_by_pk(id: $chatId) {
    id
  }
}`
